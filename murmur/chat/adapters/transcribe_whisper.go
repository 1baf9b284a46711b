package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/murmurvoice/murmur/murmur/audio"
	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

// WhisperModelSizes are the model sizes a whisper server can be asked for.
var WhisperModelSizes = []string{"tiny", "base", "small", "medium", "large"}

// ValidWhisperModel reports whether size is a recognized whisper model size.
func ValidWhisperModel(size string) bool {
	for _, s := range WhisperModelSizes {
		if s == size {
			return true
		}
	}
	return false
}

// WhisperTranscriber transcribes clips by posting them as WAV to a local
// whisper server speaking the OpenAI audio transcription protocol
// (POST {base_url}/audio/transcriptions, multipart form, verbose JSON out).
type WhisperTranscriber struct {
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// NewWhisperTranscriber creates a transcriber for the given endpoint and
// model size. The model size is fixed for the transcriber's lifetime.
func NewWhisperTranscriber(baseURL, model, language string, timeout time.Duration) (*WhisperTranscriber, error) {
	if !ValidWhisperModel(model) {
		return nil, fmt.Errorf("unknown whisper model %q, want one of %s", model, strings.Join(WhisperModelSizes, ", "))
	}
	return &WhisperTranscriber{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// whisperResponse mirrors the verbose JSON shape of whisper servers.
type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text       string  `json:"text"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe sends the clip and returns its transcript. Empty or silent
// audio fails with ErrTranscriptionFailed rather than returning empty text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, clip audio.Clip) (chatports.Transcript, error) {
	if clip.Empty() {
		return chatports.Transcript{}, fmt.Errorf("%w: empty audio clip", chatports.ErrTranscriptionFailed)
	}

	wav, err := audio.EncodeWAV(clip)
	if err != nil {
		return chatports.Transcript{}, fmt.Errorf("%w: encoding clip: %v", chatports.ErrTranscriptionFailed, err)
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	part, err := form.CreateFormFile("file", "capture.wav")
	if err != nil {
		return chatports.Transcript{}, fmt.Errorf("%w: building form: %v", chatports.ErrTranscriptionFailed, err)
	}
	if _, err := part.Write(wav); err != nil {
		return chatports.Transcript{}, fmt.Errorf("%w: building form: %v", chatports.ErrTranscriptionFailed, err)
	}
	form.WriteField("model", t.model)
	form.WriteField("response_format", "verbose_json")
	if t.language != "" {
		form.WriteField("language", t.language)
	}
	if err := form.Close(); err != nil {
		return chatports.Transcript{}, fmt.Errorf("%w: building form: %v", chatports.ErrTranscriptionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return chatports.Transcript{}, fmt.Errorf("%w: %v", chatports.ErrTranscriptionFailed, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return chatports.Transcript{}, fmt.Errorf("%w: posting to %s: %v", chatports.ErrTranscriptionFailed, t.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return chatports.Transcript{}, fmt.Errorf("%w: server returned %d: %s", chatports.ErrTranscriptionFailed, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return chatports.Transcript{}, fmt.Errorf("%w: decoding response: %v", chatports.ErrTranscriptionFailed, err)
	}

	text := strings.TrimSpace(decoded.Text)
	if text == "" {
		return chatports.Transcript{}, fmt.Errorf("%w: no speech detected", chatports.ErrTranscriptionFailed)
	}

	result := chatports.Transcript{Text: text, Language: decoded.Language}
	for _, s := range decoded.Segments {
		result.Segments = append(result.Segments, chatports.Segment{
			Text:       strings.TrimSpace(s.Text),
			Start:      s.Start,
			End:        s.End,
			Confidence: s.AvgLogprob,
		})
	}

	return result, nil
}

var _ chatports.Transcriber = (*WhisperTranscriber)(nil)
