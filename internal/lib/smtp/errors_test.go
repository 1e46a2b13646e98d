package smtp

import (
	"errors"
	"fmt"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "mailbox unavailable", err: &textproto.Error{Code: 550, Msg: "no such user"}, want: true},
		{name: "wrapped rejection", err: fmt.Errorf("rcpt to: %w", &textproto.Error{Code: 553, Msg: "bad address"}), want: true},
		{name: "greylisted", err: &textproto.Error{Code: 451, Msg: "try later"}, want: false},
		{name: "network error", err: errors.New("connection refused"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}
}
