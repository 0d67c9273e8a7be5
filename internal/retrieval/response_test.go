package retrieval

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_MarshalShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    string
	}{
		{
			name:    "candidates",
			payload: CandidatesPayload(Candidate{Name: "A", Summary: "s", SourceURL: "u"}),
			want:    `{"candidates":[{"name":"A","summary":"s","source_url":"u"}]}`,
		},
		{
			name:    "empty candidates",
			payload: CandidatesPayload(),
			want:    `{"candidates":[]}`,
		},
		{
			name:    "stance without alternate",
			payload: StancePayload([]Candidate{{Name: "A", Summary: "SUPPORT - x"}}, nil),
			want:    `{"primary":[{"name":"A","summary":"SUPPORT - x","source_url":""}],"alternate":[]}`,
		},
		{
			name:    "message",
			payload: MessagePayload("No information found on housing."),
			want:    `"No information found on housing."`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.payload)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(data))
		})
	}
}

func TestDecodePayload_Coercion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Payload
	}{
		{
			name: "candidates object",
			raw:  `{"candidates":[{"name":"A","summary":"s","source_url":"u"}]}`,
			want: CandidatesPayload(Candidate{Name: "A", Summary: "s", SourceURL: "u"}),
		},
		{
			name: "bare array",
			raw:  `[{"name":"A","summary":"s","source_url":"u"}]`,
			want: CandidatesPayload(Candidate{Name: "A", Summary: "s", SourceURL: "u"}),
		},
		{
			name: "json inside a string",
			raw:  `"{\"candidates\":[{\"name\":\"A\",\"summary\":\"s\",\"source_url\":\"u\"}]}"`,
			want: CandidatesPayload(Candidate{Name: "A", Summary: "s", SourceURL: "u"}),
		},
		{
			name: "prose under candidates",
			raw:  `{"candidates":"- A: supports it"}`,
			want: MessagePayload("- A: supports it"),
		},
		{
			name: "stance object",
			raw:  `{"primary":[{"name":"A","summary":"SUPPORT - x","source_url":""}]}`,
			want: StancePayload([]Candidate{{Name: "A", Summary: "SUPPORT - x"}}, nil),
		},
		{
			name: "message object",
			raw:  `{"message":"hello"}`,
			want: MessagePayload("hello"),
		},
		{
			name: "plain string",
			raw:  `"just prose"`,
			want: MessagePayload(CorruptedCacheMessage),
		},
		{
			name: "unknown object",
			raw:  `{"foo":1}`,
			want: MessagePayload(CorruptedCacheMessage),
		},
		{
			name: "number",
			raw:  `42`,
			want: MessagePayload(CorruptedCacheMessage),
		},
		{
			name: "truncated",
			raw:  `{"candidates":[`,
			want: MessagePayload(CorruptedCacheMessage),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecodePayload(json.RawMessage(tc.raw)))
		})
	}
}

func TestPayload_UnmarshalWireString(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`"No clear stances found on GST."`), &p))
	assert.Equal(t, MessagePayload("No clear stances found on GST."), p)

	assert.Error(t, json.Unmarshal([]byte(`{"foo":1}`), &p))
}

func TestResponse_JSON(t *testing.T) {
	resp := Response{Payload: MessagePayload("hi"), Type: TypeNoTopicChunks, Topic: "housing"}
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"hi","type":"no_topic_chunks","topic":"housing"}`, string(data))

	var back Response
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, resp, back)
}

func TestPayload_Text(t *testing.T) {
	p := StancePayload(
		[]Candidate{{Name: "A", Summary: "SUPPORT - cheaper"}},
		[]Candidate{{Name: "B", Summary: "OPPOSE - risky"}},
	)
	assert.Equal(t, "A: SUPPORT - cheaper\n\nOn the other side:\n\nB: OPPOSE - risky", p.Text())
	assert.Equal(t, "hello", MessagePayload("hello").Text())
}

func TestNewErrorBody(t *testing.T) {
	body := NewErrorBody(errors.New("boom"))
	assert.Equal(t, ErrorBody{Response: "An error occurred: boom", Type: "exception"}, body)
}

func TestCandidateURL(t *testing.T) {
	tests := []struct {
		base string
		name string
		want string
	}{
		{"", "Jane Doe", "https://election2025.gg/candidates/jane-doe"},
		{"https://example.gg/c/", "  Mary Ann Smith ", "https://example.gg/c/mary-ann-smith"},
		{"https://example.gg", "O'Neill", "https://example.gg/o'neill"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CandidateURL(tc.base, tc.name))
		})
	}
}
