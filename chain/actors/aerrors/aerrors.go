// Package aerrors carries coded errors through actor execution. A
// non-fatal ActorError maps to an exit code that reverts the invocation;
// a fatal one aborts message application entirely.
package aerrors

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"
)

type ActorError interface {
	error
	IsFatal() bool
	RetCode() exitcode.ExitCode
}

type actorError struct {
	fatal   bool
	retCode exitcode.ExitCode

	msg string
	err error
}

func (e *actorError) IsFatal() bool {
	return e.fatal
}

func (e *actorError) RetCode() exitcode.ExitCode {
	return e.retCode
}

func (e *actorError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.err)
	}
	return e.msg
}

func (e *actorError) Unwrap() error {
	return e.err
}

// New creates a non-fatal error with the given exit code. Code 0 is
// reserved for success; passing it is a programmer error and escalates
// to fatal.
func New(retCode exitcode.ExitCode, msg string) ActorError {
	if retCode == exitcode.Ok {
		return &actorError{
			fatal:   true,
			retCode: exitcode.SysErrorIllegalActor,
			msg:     "tried creating an error with exit code 0: " + msg,
		}
	}
	return &actorError{
		retCode: retCode,
		msg:     msg,
	}
}

func Newf(retCode exitcode.ExitCode, format string, args ...interface{}) ActorError {
	return New(retCode, fmt.Sprintf(format, args...))
}

// Fatal errors propagate out of ApplyMessage as Go errors rather than
// exit codes.
func Fatal(msg string) ActorError {
	return &actorError{
		fatal: true,
		msg:   msg,
	}
}

func Fatalf(format string, args ...interface{}) ActorError {
	return Fatal(fmt.Sprintf(format, args...))
}

// Wrap extends an ActorError with a message, preserving its exit code
// and fatality. Wrapping nil returns nil.
func Wrap(err ActorError, msg string) ActorError {
	if err == nil {
		return nil
	}
	return &actorError{
		fatal:   err.IsFatal(),
		retCode: err.RetCode(),
		msg:     msg,
		err:     err,
	}
}

func Wrapf(err ActorError, format string, args ...interface{}) ActorError {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// Absorb turns a plain error into a non-fatal ActorError with the given
// exit code. Absorbing an existing fatal ActorError is not allowed.
func Absorb(err error, retCode exitcode.ExitCode, msg string) ActorError {
	if err == nil {
		return nil
	}
	if aerr, ok := err.(ActorError); ok && aerr.IsFatal() {
		return &actorError{
			fatal:   true,
			retCode: exitcode.SysErrorIllegalActor,
			msg:     "tried to absorb a fatal error: " + msg,
			err:     err,
		}
	}

	return &actorError{
		retCode: retCode,
		msg:     msg,
		err:     err,
	}
}

// Escalate turns any error into a fatal ActorError.
func Escalate(err error, msg string) ActorError {
	if err == nil {
		return nil
	}
	return &actorError{
		fatal: true,
		msg:   msg,
		err:   err,
	}
}

func RetCode(err ActorError) exitcode.ExitCode {
	if err == nil {
		return exitcode.Ok
	}
	return err.RetCode()
}

func IsFatal(err ActorError) bool {
	return err != nil && err.IsFatal()
}
