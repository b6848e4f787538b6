package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Record(ctx context.Context) error
	Edit(ctx context.Context, clientID string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, clientID string) error
	Sync(ctx context.Context) error
	Retry(ctx context.Context, clientID string) error
	Queue(ctx context.Context) error
	Migrate(ctx context.Context, args []string) error
	Status(ctx context.Context) error
	Refresh(ctx context.Context) error
	Export(ctx context.Context) error
	Wipe(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: login, status, exit"
	helpLoggedIn  = "Available commands: record, edit <id>, (l)ist [from] [to], show <id>, sync, queue, retry <id>, " +
		"migrate <from> <to> [prune], status, refresh, export, wipe, logout, exit"
)

// runREPL starts a read–eval–print loop over lines read from reader.
//
// The first token of a line is the command, the rest are its arguments.
// Commands other than login, status, help and exit need a stored login.
// Errors returned by handlers are printed and the loop goes on. The loop
// exits on EOF, on "exit"/"quit" or when ctx is cancelled.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("insp %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if done := dispatch(ctx, a, cmd, args); done {
			return
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) (exit bool) {
	var err error

	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn(helpLoggedIn)
		} else {
			printlnFn(helpLoggedOut)
		}
		return false
	case "exit", "quit":
		printlnFn("Bye!")
		return true
	case "login":
		err = a.Login(ctx)
	case "status":
		err = a.Status(ctx)
	default:
		if !a.isLoggedIn() {
			printlnFn("Please log in first")
			return false
		}
		err = dispatchLoggedIn(ctx, a, cmd, args)
	}

	if err != nil {
		printlnFn("Error:", err)
	}
	return false
}

func dispatchLoggedIn(ctx context.Context, a execIface, cmd string, args []string) error {
	needID := func(fn func(context.Context, string) error) error {
		if len(args) != 1 {
			printlnFn(fmt.Sprintf("Usage: %s <id>", cmd))
			return nil
		}
		return fn(ctx, args[0])
	}

	switch cmd {
	case "record", "new":
		return a.Record(ctx)
	case "edit":
		return needID(a.Edit)
	case "l", "list":
		return a.List(ctx, args)
	case "show":
		return needID(a.Show)
	case "sync":
		return a.Sync(ctx)
	case "queue":
		return a.Queue(ctx)
	case "retry":
		return needID(a.Retry)
	case "migrate":
		return a.Migrate(ctx, args)
	case "refresh":
		return a.Refresh(ctx)
	case "export":
		return a.Export(ctx)
	case "wipe":
		return a.Wipe(ctx)
	case "logout":
		return a.Logout(ctx)
	default:
		printlnFn("Unknown command:", cmd)
		return nil
	}
}
