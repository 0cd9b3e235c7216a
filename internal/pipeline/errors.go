package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDecodeFailure means at least one attached image held no readable
	// barcode. The whole batch is rejected.
	ErrDecodeFailure = errors.New("barcode not recognized")

	// ErrIncompleteNutrition means a resolved item lacks a nutrient value the
	// selected answer needs.
	ErrIncompleteNutrition = errors.New("incomplete nutrition data")
)

// DecodeError reports which image could not be decoded.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("image %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes every DecodeError match ErrDecodeFailure.
func (e *DecodeError) Is(target error) bool { return target == ErrDecodeFailure }

// FetchError reports an I/O failure retrieving an image. It is transient and
// never matches ErrDecodeFailure.
type FetchError struct {
	Index int
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch image %d: %v", e.Index, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// LookupError reports a lookup source failure that is neither not-found nor
// malformed-code.
type LookupError struct {
	Code string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s: %v", e.Code, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// MissingFieldError names the item and nutrient that had no value.
type MissingFieldError struct {
	Code  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("barcode %s has no %s value", e.Code, e.Field)
}

// Is makes every MissingFieldError match ErrIncompleteNutrition.
func (e *MissingFieldError) Is(target error) bool { return target == ErrIncompleteNutrition }
