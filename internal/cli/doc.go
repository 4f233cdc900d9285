// Package cli is responsible for parsing command-line arguments and
// validating user input for the bhirctl binary, translating flags into a
// Config the rest of the program can act on.
package cli
