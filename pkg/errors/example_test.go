package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/mongoscan/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeConnection, "unable to parse connection string").
		WithDetail("uri", "mongo://bad")

	fmt.Println(err.Error())

	// Output:
	// connection: unable to parse connection string
}

// ExampleWrap shows how a partition failure keeps the conversion type visible.
func ExampleWrap() {
	conv := errors.New(errors.ErrorTypeConversion, "cannot append string to int64 column").
		WithDetail("column", "age")
	err := errors.Wrap(conv, errors.ErrorTypeScan, "partition 2 failed")

	fmt.Println(errors.TypeOf(err))
	fmt.Println(errors.IsType(err, errors.ErrorTypeConversion))

	// Output:
	// scan
	// true
}

// ExampleIsRetryable shows which failures are worth retrying.
func ExampleIsRetryable() {
	connErr := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeConnection, "server closed connection")
	convErr := errors.New(errors.ErrorTypeConversion, "bad value")

	fmt.Println(errors.IsRetryable(connErr))
	fmt.Println(errors.IsRetryable(convErr))
	fmt.Println(errors.IsRetryable(io.EOF))

	// Output:
	// true
	// false
	// false
}
