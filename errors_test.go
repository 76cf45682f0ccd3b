package tinyjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseErrorFormatting(t *testing.T) {
	err := &ParseError{Message: "unexpected token", Kind: "syntax", Line: 2, Column: 5}
	assert.Equal(t, "unexpected token @ 2:5", err.Error())

	err.Source = "main.js"
	assert.Equal(t, "unexpected token @ main.js:2:5", err.Error())
}

func TestAbortErrorFormatting(t *testing.T) {
	halt := &AbortError{Reason: AbortReasonHalt}
	assert.Equal(t, "execution aborted by host", halt.Error())

	oom := &AbortError{Reason: AbortReasonOutOfMemory}
	assert.Equal(t, "out of memory", oom.Error())
}

func TestRuntimeExceptionFormatting(t *testing.T) {
	ctx := NewContext(NewConfig())
	exc := &RuntimeException{Value: ctx.newStringResult("boom")}
	assert.Contains(t, exc.Error(), "boom")
}
