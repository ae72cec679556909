package cli

import (
	"os"
	"testing"

	"github.com/aretw0/ifgate/internal/testutils"
)

func TestMain(m *testing.M) {
	if testutils.IsFakeInterpreter() {
		os.Exit(testutils.RunFakeInterpreter(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}
