package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), ErrNotFound},
		{"unique violation", &pq.Error{Code: "23505"}, ErrDuplicate},
		{"other pq error", &pq.Error{Code: "23503"}, nil},
		{"passthrough", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.in)
			if tt.name == "other pq error" {
				assert.NotErrorIs(t, got, ErrDuplicate)
				assert.NotErrorIs(t, got, ErrNotFound)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
