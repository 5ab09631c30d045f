package apperrors

import (
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AppError", func() {
	Context("basic error creation", func() {
		It("should create error with correct properties", func() {
			err := New(ErrorTypeValidation, "test message")

			Expect(err.Type).To(Equal(ErrorTypeValidation))
			Expect(err.Message).To(Equal("test message"))
			Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(err.Details).To(BeEmpty())
			Expect(err.Cause).To(BeNil())
		})

		It("should implement the error interface", func() {
			err := New(ErrorTypeValidation, "test message")
			Expect(err.Error()).To(Equal("validation: test message"))
		})

		It("should include details in the error string when present", func() {
			err := New(ErrorTypeValidation, "test message").WithDetails("extra info")
			Expect(err.Error()).To(Equal("validation: test message (extra info)"))
		})
	})

	Context("error wrapping", func() {
		It("should wrap an underlying error", func() {
			originalErr := errors.New("original error")
			wrapped := Wrap(originalErr, ErrorTypeStorage, "operation failed")

			Expect(wrapped.Type).To(Equal(ErrorTypeStorage))
			Expect(wrapped.Cause).To(Equal(originalErr))
			Expect(wrapped.Unwrap()).To(Equal(originalErr))
		})

		It("should format wrapped errors with arguments", func() {
			originalErr := errors.New("connection refused")
			wrapped := Wrapf(originalErr, ErrorTypeProvider, "failed to reach %s:%d", "localhost", 443)

			Expect(wrapped.Message).To(Equal("failed to reach localhost:443"))
		})
	})

	Describe("HTTP status code mapping", func() {
		It("maps every error type to a status code", func() {
			cases := map[ErrorType]int{
				ErrorTypeValidation: http.StatusBadRequest,
				ErrorTypeProvider:   http.StatusBadGateway,
				ErrorTypeParse:      http.StatusUnprocessableEntity,
				ErrorTypeStorage:    http.StatusInternalServerError,
				ErrorTypeConflict:   http.StatusConflict,
				ErrorTypeTimeout:    http.StatusGatewayTimeout,
				ErrorTypeCancelled:  http.StatusGone,
				ErrorTypeInternal:   http.StatusInternalServerError,
			}
			for errType, status := range cases {
				Expect(New(errType, "x").StatusCode).To(Equal(status))
			}
		})
	})

	Describe("predefined constructors", func() {
		It("builds a storage error with the wrapped cause surfaced", func() {
			cause := errors.New("connection lost")
			err := NewStorageError("create_patch", cause)

			Expect(err.Type).To(Equal(ErrorTypeStorage))
			Expect(err.Message).To(ContainSubstring("create_patch"))
			Expect(err.Cause).To(Equal(cause))
		})

		It("builds a conflict error for a stale patch id", func() {
			err := NewConflictError("patch_id does not match the pending patch")
			Expect(err.Type).To(Equal(ErrorTypeConflict))
		})
	})

	Describe("type checks", func() {
		It("identifies AppError types", func() {
			validationErr := NewValidationError("bad input")
			Expect(IsType(validationErr, ErrorTypeValidation)).To(BeTrue())
			Expect(IsType(validationErr, ErrorTypeProvider)).To(BeFalse())
		})

		It("treats non-AppError values as internal", func() {
			regular := errors.New("regular error")
			Expect(IsType(regular, ErrorTypeValidation)).To(BeFalse())
			Expect(GetType(regular)).To(Equal(ErrorTypeInternal))
			Expect(GetStatusCode(regular)).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("safe error messages", func() {
		It("passes validation messages through verbatim", func() {
			err := NewValidationError("primary_lever must be one of the known levers")
			Expect(SafeErrorMessage(err)).To(Equal("primary_lever must be one of the known levers"))
		})

		It("returns a generic message for other AppError types", func() {
			err := New(ErrorTypeStorage, "pgx: connection reset")
			Expect(SafeErrorMessage(err)).To(Equal("An internal error occurred"))
		})

		It("returns a generic message for plain errors", func() {
			Expect(SafeErrorMessage(errors.New("boom"))).To(Equal("An unexpected error occurred"))
		})
	})

	Describe("LogFields", func() {
		It("includes type, status, details and cause when present", func() {
			cause := errors.New("connection failed")
			err := Wrapf(cause, ErrorTypeStorage, "query failed").WithDetails("table: patches")

			fields := LogFields(err)
			Expect(fields).To(HaveKeyWithValue("error_type", "storage"))
			Expect(fields).To(HaveKeyWithValue("error_details", "table: patches"))
			Expect(fields).To(HaveKeyWithValue("underlying_error", "connection failed"))
		})

		It("omits optional keys when absent", func() {
			fields := LogFields(NewValidationError("bad"))
			Expect(fields).NotTo(HaveKey("error_details"))
			Expect(fields).NotTo(HaveKey("underlying_error"))
		})
	})

	Describe("Chain", func() {
		It("returns nil for no errors", func() {
			Expect(Chain()).To(BeNil())
		})

		It("passes a single error through unchanged", func() {
			err := errors.New("solo")
			Expect(Chain(err)).To(Equal(err))
		})

		It("filters nils and joins the rest", func() {
			err := Chain(errors.New("first"), nil, errors.New("second"))
			Expect(err.Error()).To(ContainSubstring("first"))
			Expect(err.Error()).To(ContainSubstring("second"))
			Expect(err.Error()).To(ContainSubstring(" -> "))
		})

		It("returns nil when every error is nil", func() {
			Expect(Chain(nil, nil)).To(BeNil())
		})
	})
})
