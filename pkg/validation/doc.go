// Package validation checks user-supplied identifiers before they are placed
// into request paths or storage keys.
//
// Flow, host and node identifiers are restricted to letters, digits, hyphen and
// underscore. Run identifiers are "<host>-<seq>" and are checked part by part.
//
//	if err := validation.ValidateIdentifier("flow", flowID); err != nil {
//	    return err
//	}
//
// All functions are safe for concurrent use.
package validation
