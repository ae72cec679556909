package testutils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FakeInterpreterEnv marks a test binary re-executed as a scripted interpreter.
const FakeInterpreterEnv = "IFGATE_FAKE_INTERPRETER"

// Banner is what the fake interpreter prints on a normal start.
const Banner = "FAKE ADVENTURE\nAn interactive fixture.\n\nWest of House\nYou are standing in an open field west of a white house.\n\n>"

// IsFakeInterpreter reports whether this process should behave as the fake interpreter.
// Call it first thing in TestMain.
func IsFakeInterpreter() bool {
	return os.Getenv(FakeInterpreterEnv) == "1"
}

// FakeInterpreterCommand returns the command and environment that re-execute the
// current test binary as the fake interpreter.
func FakeInterpreterCommand() (string, []string) {
	return os.Args[0], []string{FakeInterpreterEnv + "=1"}
}

// RunFakeInterpreter plays a dumb-terminal interpreter over stdin/stdout.
// The scenario is the base name of the last argument, as the game file:
//
//	standard  banner, then scripted responses
//	echo      like standard but repeats every command before responding
//	paged     banner paginated with ***MORE***
//	silent    prints nothing on start
//	crash     exits with code 2 before printing
//
// It returns the process exit code.
func RunFakeInterpreter(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	scenario := "standard"
	if len(args) > 0 {
		base := filepath.Base(args[len(args)-1])
		scenario = strings.TrimSuffix(base, filepath.Ext(base))
	}

	in := bufio.NewReader(stdin)
	say := func(s string) { _, _ = io.WriteString(stdout, s) }
	waitKey := func() bool {
		_, err := in.ReadString('\n')
		return err == nil
	}

	switch scenario {
	case "crash":
		return 2
	case "silent":
	case "paged":
		say("FAKE ADVENTURE\n***MORE***")
		if !waitKey() {
			return 0
		}
		say("\nWest of House\n\n>")
	default:
		say(Banner)
	}

	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return 0
		}
		command := strings.TrimRight(line, "\r\n")
		if scenario == "echo" {
			say(command + "\n")
		}

		switch {
		case command == "look":
			say("West of House\nYou are standing in an open field west of a white house.\n\n>")
		case command == "inventory":
			say("You are empty-handed.\n\n>")
		case command == "read leaflet":
			say("WELCOME TO ZORK!\n***MORE***")
			if !waitKey() {
				return 0
			}
			say("\nZORK is a game of adventure, danger, and low cunning.\n***MORE***")
			if !waitKey() {
				return 0
			}
			say("\nNo computer should be without one!\n\n>")
		case command == "wait":
			// No prompt: the turn can only end on its deadline.
			say("Time passes...\n")
		case strings.HasPrefix(command, "sleep "):
			d, perr := time.ParseDuration(strings.TrimPrefix(command, "sleep "))
			if perr != nil {
				d = 0
			}
			say("Zzz...\n")
			time.Sleep(d)
			say("You wake up.\n\n>")
		case command == "warn":
			_, _ = io.WriteString(stderr, "warning: fixture stderr\n")
			say("Warned.\n\n>")
		case command == "quit":
			say("Goodbye.\n")
			return 0
		case command == "crash":
			return 3
		case command == "":
			say("I beg your pardon?\n\n>")
		default:
			say(fmt.Sprintf("You said %q.\n\n>", command))
		}
	}
}
