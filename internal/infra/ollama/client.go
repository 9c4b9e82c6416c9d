package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vishnuvardhanreddy8653/smart-home/internal/application"
	"github.com/vishnuvardhanreddy8653/smart-home/internal/domain"
	"github.com/vishnuvardhanreddy8653/smart-home/internal/infra"
)

// Client resolves free-form command text through a local Ollama instance.
// It implements application.FallbackResolver; every failure is returned as
// an *application.ResolveError so callers can tell timeouts, transport
// failures and unparsable replies apart.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "mistral"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type response struct {
	Message message `json:"message"`
}

const promptTemplate = `Extract intent from: %q.
Return JSON with: action ("turn_on", "turn_off"), device_type, location, response_text.`

func (c *Client) Resolve(ctx context.Context, text string) (domain.Intent, error) {
	reqBody := request{
		Model: c.model,
		Messages: []message{
			{Role: "user", Content: fmt.Sprintf(promptTemplate, text)},
		},
		Stream: false,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Intent{}, &application.ResolveError{
			Kind: application.ResolveErrTransport,
			Err:  fmt.Errorf("marshaling request: %w", err),
		}
	}

	var result response
	retryErr := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("ollama API error %d: %s", resp.StatusCode, string(respBody))
			if !infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return infra.Permanent(err)
			}
			return err
		}

		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return infra.Permanent(&application.ResolveError{
				Kind: application.ResolveErrParse,
				Err:  fmt.Errorf("decoding response: %w", err),
			})
		}

		return nil
	})

	if retryErr != nil {
		return domain.Intent{}, classify(retryErr)
	}

	return extractIntent(result.Message.Content)
}

// classify wraps a call failure with its failure kind. Errors already
// classified inside the retry loop pass through unchanged.
func classify(err error) error {
	var resolveErr *application.ResolveError
	if errors.As(err, &resolveErr) {
		return resolveErr
	}

	kind := application.ResolveErrTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = application.ResolveErrTimeout
	}
	return &application.ResolveError{Kind: kind, Err: err}
}

// extractIntent pulls the intent JSON out of the model's reply: strip any
// code-fence markers, then parse the region between the first "{" and the
// last "}".
func extractIntent(content string) (domain.Intent, error) {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return domain.Intent{}, &application.ResolveError{
			Kind: application.ResolveErrParse,
			Err:  fmt.Errorf("no JSON object in reply: %q", content),
		}
	}

	var intent domain.Intent
	if err := json.Unmarshal([]byte(content[start:end+1]), &intent); err != nil {
		return domain.Intent{}, &application.ResolveError{
			Kind: application.ResolveErrParse,
			Err:  fmt.Errorf("parsing intent JSON: %w", err),
		}
	}
	return intent, nil
}
