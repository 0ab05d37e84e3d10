package wam_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestWAM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "WAM Suite")
}
