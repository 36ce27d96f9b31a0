package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(parts ...genai.Part) *genai.Candidate {
	return &genai.Candidate{Content: &genai.Content{Role: "model", Parts: parts}}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		candidate(genai.Text("- egg\n- rice")),
		candidate(genai.Text("ignored")),
	}}

	text, err := responseText(resp)

	require.NoError(t, err)
	assert.Equal(t, "- egg\n- rice", text)
}

func TestResponseText_Errors(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		wantErr error
	}{
		{name: "nil response", resp: nil, wantErr: ErrEmptyResponse},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, wantErr: ErrEmptyResponse},
		{name: "nil candidate", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{nil}}, wantErr: ErrEmptyResponse},
		{name: "nil content", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, wantErr: ErrEmptyResponse},
		{name: "no parts", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{candidate()}}, wantErr: ErrEmptyResponse},
		{
			name:    "blob part",
			resp:    &genai.GenerateContentResponse{Candidates: []*genai.Candidate{candidate(genai.ImageData("png", []byte{1}))}},
			wantErr: ErrUnexpectedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := responseText(tt.resp)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
