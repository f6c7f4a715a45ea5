package assay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/factgate/internal/extract"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/score"
	"github.com/ppiankov/factgate/internal/verify"
)

const systemPrompt = `You are a statistics lookup service. Answer only with a JSON object of the form
{"value": "<the value; figures as digits only, no units>", "source_url": "<URL of the official source>", "as_of_year": <year>}.
If you do not know the figure, answer {"value": "", "source_url": "", "as_of_year": 0}.`

// ErrNoAnswer is returned when the model gives no usable value
var ErrNoAnswer = errors.New("no answer from live assay")

// LiveAssay asks an OpenAI-compatible model for the recorded value of a
// claim and compares it within tolerance
type LiveAssay struct {
	client     *openai.Client
	provider   string
	model      string
	maxTokens  int
	timeout    time.Duration
	tolerances verify.ToleranceTable
	now        func() time.Time
}

// NewLiveAssay creates a live assay from configuration. It returns nil and
// no error when no provider is configured.
func NewLiveAssay(cfg model.AssayConfig, tolerances verify.ToleranceTable, httpClient *http.Client) (*LiveAssay, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "":
		return nil, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.WithHint(errors.New("OpenAI API key is required"),
				"set assay.api_key in the config file or FACTGATE_ASSAY_API_KEY")
		}
	case "ollama", "compatible":
		if cfg.BaseURL == "" {
			return nil, errors.Newf("assay provider %s requires assay.base_url", provider)
		}
	default:
		return nil, errors.Newf("unknown assay provider: %s (supported: openai, ollama, compatible)", cfg.Provider)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 300
	}

	return &LiveAssay{
		client:     openai.NewClientWithConfig(clientConfig),
		provider:   provider,
		model:      modelName,
		maxTokens:  maxTokens,
		timeout:    timeout,
		tolerances: tolerances,
		now:        time.Now,
	}, nil
}

// Name implements Assay
func (l *LiveAssay) Name() string {
	return l.provider
}

// liveAnswer is the JSON object the model is asked to return
type liveAnswer struct {
	Value     string `json:"value"`
	SourceURL string `json:"source_url"`
	AsOfYear  int    `json:"as_of_year"`
}

// Execute asks the model for the figure and compares it with the claim
func (l *LiveAssay) Execute(ctx context.Context, req model.AssayRequest) (*model.RetrievalAssayResult, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildQuestion(req)},
		},
		MaxTokens:   l.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s assay request", l.provider)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Newf("no response from %s", l.provider)
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)

	var answer liveAnswer
	if err := json.Unmarshal([]byte(content), &answer); err != nil {
		return nil, errors.Wrapf(err, "decode %s answer %q", l.provider, content)
	}

	answered := strings.TrimSpace(answer.Value)
	value, numeric := extract.ParseNumber(answered)
	if _, wantNumber := extract.ParseNumber(req.ClaimedValue); answered == "" || (wantNumber && !numeric) {
		return nil, errors.Wrapf(ErrNoAnswer, "%s answered %q", l.provider, answer.Value)
	}

	tolerance := l.tolerances.For(req.Attribute)
	result := &model.RetrievalAssayResult{
		AssayID:      l.provider + "-" + uuid.NewString(),
		Assay:        l.provider,
		Request:      req,
		RawResponses: model.Provenance{l.provider: {Kind: model.ProvenanceRaw, Raw: json.RawMessage(content)}},
		ParsedValues: model.Provenance{},
		ConsensusResult: model.AgreementSummary{
			Method:       "single_source_tolerance",
			Threshold:    1,
			TolerancePct: tolerance,
			TotalSources: 1,
			TotalTrust:   1,
		},
		ExecutedAt: l.now(),
	}

	if numeric {
		host := score.Host(answer.SourceURL)
		if host == "" {
			host = l.provider
		}
		result.ParsedValues[host] = model.ParsedProvenance(value, answer.SourceURL)
		result.Consensus = &value
	}

	if verify.ValuesAgree(req.ClaimedValue, answered, tolerance) {
		result.Verified = true
		result.ConsensusResult.Agreement = 1
		result.ConsensusResult.AgreeingSources = 1
		result.ConsensusResult.AgreeingTrust = 1
	}

	return result, nil
}

func buildQuestion(req model.AssayRequest) string {
	attribute := strings.ReplaceAll(req.Attribute, "_", " ")
	if req.Year != nil {
		return fmt.Sprintf("What was the %s of %s in %d?", attribute, req.Entity, *req.Year)
	}
	return fmt.Sprintf("What is the latest recorded %s of %s?", attribute, req.Entity)
}

// stripCodeFence removes a ```json ... ``` wrapper some models add
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
