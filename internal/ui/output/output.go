// Package output creates terminal outputs with a consistent colour profile.
package output

import (
	"io"
	"os"

	"github.com/muesli/termenv"
)

// ColorProfile picks the profile for w.
// NO_COLOR disables colour, CI forces basic ANSI and anything else is detected from the environment.
func ColorProfile() termenv.Profile {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return termenv.Ascii
	case os.Getenv("CI") != "":
		return termenv.ANSI
	default:
		return termenv.EnvColorProfile()
	}
}

// New returns a termenv.Output on w, defaulting to stderr.
func New(w io.Writer, opts ...termenv.OutputOption) *termenv.Output {
	return NewWithProfile(w, ColorProfile, opts...)
}

// NewWithProfile is New with a custom profile selector.
func NewWithProfile(w io.Writer, profileFn func() termenv.Profile, opts ...termenv.OutputOption) *termenv.Output {
	if w == nil {
		w = os.Stderr
	}
	opts = append(opts, termenv.WithProfile(profileFn()), termenv.WithTTY(true))
	return termenv.NewOutput(w, opts...)
}
