package mesherr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"syntax with line", Syntax(4, "unsupported keyword %q", "Frobnicate"), `syntax error at line 4: unsupported keyword "Frobnicate"`},
		{"syntax without line", Syntax(0, "bad"), "syntax error: bad"},
		{"io", Io(io.ErrUnexpectedEOF), "io error: unexpected EOF"},
		{"unsupported", Unsupported("version %s", "2"), "unsupported error: version 2"},
		{"broken invariant", BrokenInvariant("no open group"), "broken invariant error: no open group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("deserialize: %w", Syntax(2, "bad number"))

	assert.True(t, errors.Is(err, ErrSyntax))
	assert.False(t, errors.Is(err, ErrUnsupported))
	assert.Equal(t, KindSyntax, KindOf(err))
}

func TestIoUnwrap(t *testing.T) {
	err := Io(io.ErrUnexpectedEOF)

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(err, ErrIo))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestExternalPassesThroughTaxonomy(t *testing.T) {
	orig := BrokenInvariant("stale group")
	assert.Same(t, orig, External(orig))

	foreign := errors.New("disk quota")
	wrapped := External(foreign)
	assert.Equal(t, KindOtherExternal, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, foreign))
	assert.Nil(t, External(nil))
}
