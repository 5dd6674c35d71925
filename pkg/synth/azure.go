package synth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/voxtide/agentcore/pkg/orchestrator"
)

// AzureSynthesizer calls Azure Cognitive Services Speech's REST synthesis
// endpoint. Unlike edge.go there is no teacher equivalent for a streaming
// websocket here — Azure's REST synthesis endpoint is a plain POST that
// returns a complete audio body — so this follows the corpus's other
// raw-net/http vendor-call idiom (the same shape the teacher's
// non-streaming LLM providers use).
type AzureSynthesizer struct {
	apiKey string
	region string

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewAzureSynthesizer returns a synthesizer for the given Azure Speech
// resource region.
func NewAzureSynthesizer(apiKey, region string) *AzureSynthesizer {
	return &AzureSynthesizer{apiKey: apiKey, region: region}
}

func (a *AzureSynthesizer) Synthesize(ctx context.Context, text string, voice orchestrator.Voice) ([]byte, error) {
	callCtx, cancel := context.WithCancel(ctx)
	a.cancelMu.Lock()
	a.cancel = cancel
	a.cancelMu.Unlock()
	defer cancel()

	ssml := fmt.Sprintf(
		`<speak version='1.0' xml:lang='en-US'><voice name='%s'>%s</voice></speak>`,
		string(voice), escapeSSML(text),
	)

	endpoint := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", a.region)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "raw-16khz-16bit-mono-pcm")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, callCtx.Err()
		}
		return nil, fmt.Errorf("%w: azure request failed: %v", ErrVendorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: azure returned status %d", ErrVendorUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("synth: azure error: %s (status %d)", string(body), resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Abort cancels the in-flight REST call, if any.
func (a *AzureSynthesizer) Abort() {
	a.cancelMu.Lock()
	cancel := a.cancel
	a.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func escapeSSML(text string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(text)
}
