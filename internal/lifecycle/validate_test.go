package lifecycle

import (
	"strings"
	"testing"

	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCreate(t *testing.T) {
	tests := []struct {
		name    string
		req     models.CreateMessageRequest
		wantErr bool
	}{
		{name: "text", req: models.CreateMessageRequest{Text: "  hi  "}},
		{name: "attachment only", req: models.CreateMessageRequest{Attachments: []string{"f1"}}},
		{name: "blank", req: models.CreateMessageRequest{Text: " \n\t"}, wantErr: true},
		{name: "too long", req: models.CreateMessageRequest{Text: strings.Repeat("é", 11)}, wantErr: true},
		{name: "six files", req: models.CreateMessageRequest{Text: "x", Attachments: []string{"1", "2", "3", "4", "5", "6"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := NormalizeCreate("send", &req, 10)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSpace(tt.req.Text), req.Text)
		})
	}
}

func TestNormalizeEdit(t *testing.T) {
	plain := &models.Message{Text: "old"}
	_, err := NormalizeEdit("edit", plain, "   ", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	withFile := &models.Message{Text: "old", Attachments: []string{"f1"}}
	text, err := NormalizeEdit("edit", withFile, "   ", 0)
	require.NoError(t, err)
	assert.Equal(t, "", text)

	text, err = NormalizeEdit("edit", plain, " new ", 0)
	require.NoError(t, err)
	assert.Equal(t, "new", text)
}
