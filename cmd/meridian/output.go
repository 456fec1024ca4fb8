package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"

	"meridian/pkg/reserr"
)

// emit prints a success result. With --json the data is flattened into a
// {ok:true, ...} envelope; otherwise render is called for human output.
func emit(data any, render func()) error {
	if jsonOutput {
		raw, err := json.MarshalIndent(reserr.Ok(data), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}
	render()
	return nil
}

// exitErr prints a failure and exits non-zero. Typed errors keep their code
// and details; anything else becomes a plain message.
func exitErr(err error) {
	var typed *reserr.Error
	if e, ok := err.(*reserr.Error); ok {
		typed = e
	} else {
		typed = reserr.Wrap(reserr.CodeInvalidArgs, "command failed", err)
	}

	if jsonOutput {
		raw, merr := json.MarshalIndent(reserr.Fail(typed), "", "  ")
		if merr == nil {
			fmt.Println(string(raw))
		}
	} else {
		color.Red("error [%s]: %s", typed.Code, typed.Message)
		for k, v := range typed.Details {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", k, v)
		}
	}
	os.Exit(1)
}
