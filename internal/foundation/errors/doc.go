// Package errors provides the classified error type used across assetbuilder.
//
// A ClassifiedError carries a category (config, filesystem, manifest, ...), a
// severity, a retry strategy and a context map. Errors are built with the
// fluent ErrorBuilder:
//
//	err := errors.FileSystemError("dist directory missing").
//		WithContext("path", distDir).
//		WithCause(statErr).
//		Build()
//
// The CLI adapter maps categories to process exit codes.
package errors
