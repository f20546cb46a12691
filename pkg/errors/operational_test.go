package errors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOperationalErrorNilCause(t *testing.T) {
	assert.Nil(t, NewOperationalError("fetch run", "f1", "h1-1", "", nil))
}

func TestOperationalErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *OperationalError
		want []string
		omit []string
	}{
		{
			name: "flow and run",
			err:  NewOperationalError("fetch run", "build", "h1-7", "", io.EOF),
			want: []string{"fetch run:", "flow=build", "run=h1-7", ": EOF"},
			omit: []string{"node=", "status="},
		},
		{
			name: "node and status",
			err:  NewOperationalError("push data", "build", "h1-7", "approve", io.EOF).WithStatus(http.StatusBadRequest),
			want: []string{"node=approve", "status=400"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, w := range tt.want {
				assert.Contains(t, msg, w)
			}
			for _, o := range tt.omit {
				assert.NotContains(t, msg, o)
			}
		})
	}
}

func TestOperationalErrorUnwrap(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("watch: %w", NewOperationalError("fetch run", "build", "h1-1", "", base).WithStatus(502))

	assert.ErrorIs(t, err, base)

	var op *OperationalError
	require.ErrorAs(t, err, &op)
	assert.Equal(t, "build", op.FlowID)
	assert.Equal(t, 502, StatusCode(err))
	assert.Equal(t, 0, StatusCode(base))
}

func TestOperationalErrorAttrs(t *testing.T) {
	err := NewOperationalError("push data", "build", "h1-1", "n", io.EOF).WithAttr("fields", 2)
	assert.Equal(t, 2, err.Attributes["fields"])

	var nilErr *OperationalError
	assert.Nil(t, nilErr.WithAttr("k", "v"))
	assert.Equal(t, "<nil OperationalError>", nilErr.Error())
	assert.NoError(t, nilErr.Unwrap())
}
