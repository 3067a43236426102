package nlu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

const (
	classifyToolName        = "classify_intent"
	classifyToolDescription = "Report the intent and entities of a spoken command for a Tunisian banking and shopping voice assistant."
)

type classifyArgs struct {
	Intent     string  `json:"intent" jsonschema:"required,enum=HOME,enum=LOGIN,enum=REGISTER,enum=BANK,enum=PRODUCTS,enum=BANK_TRANSFER,enum=GET_BALANCE,enum=BANK_HISTORY,enum=ADD_ITEM,enum=CHECK_PRICE,enum=CART,enum=HELP,enum=REPEAT,enum=BACK,enum=UNKNOWN,description=The user's intent"`
	Confidence float64 `json:"confidence" jsonschema:"required,description=Confidence between 0 and 1"`
	ToName     string  `json:"toName,omitempty" jsonschema:"description=Recipient of a transfer"`
	Amount     float64 `json:"amount,omitempty" jsonschema:"description=Amount of money to transfer"`
	ItemName   string  `json:"itemName,omitempty" jsonschema:"description=Product the user talks about"`
	Qty        int     `json:"qty,omitempty" jsonschema:"description=Quantity of the product"`
}

const systemPrompt = `You are the intent recognizer of a voice assistant for a Tunisian web app used by blind and low-vision people. Users speak Tunisian Darja, French or English, often mixed.

Infer the meaning of the utterance and call the '%s' tool exactly once.

Rules:
- "solde", "flousi" mean GET_BALANCE.
- "hawel 20 l sara" means BANK_TRANSFER with amount 20 and toName "sara".
- "zid hlib" means ADD_ITEM with itemName "hlib".
- Navigation requests name the section: HOME, LOGIN, REGISTER, BANK, PRODUCTS.
- If the intent is unclear, answer UNKNOWN with a low confidence.`

// LLMConfig configures the remote classifier.
type LLMConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// RequestsPerMinute bounds spending; zero means unlimited.
	RequestsPerMinute int
}

// LLM classifies with a tool-calling chat model.
type LLM struct {
	chatModel model.ToolCallingChatModel
	toolInfo  *schema.ToolInfo
	limiter   *rate.Limiter
	timeout   time.Duration
}

// NewOpenAI creates an LLM classifier over an OpenAI-compatible endpoint.
func NewOpenAI(ctx context.Context, cfg LLMConfig) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm classifier: api key is required")
	}
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("llm classifier: init chat model: %w", err)
	}
	return NewLLM(chatModel, cfg)
}

// NewLLM creates an LLM classifier over any tool-calling chat model.
func NewLLM(chatModel model.ToolCallingChatModel, cfg LLMConfig) (*LLM, error) {
	toolInfo, err := utils.GoStruct2ToolInfo[classifyArgs](classifyToolName, classifyToolDescription)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	l := &LLM{chatModel: chatModel, toolInfo: toolInfo, timeout: cfg.Timeout}
	if l.timeout <= 0 {
		l.timeout = 8 * time.Second
	}
	if cfg.RequestsPerMinute > 0 {
		l.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return l, nil
}

// Classify asks the model for a forced tool call and decodes its arguments.
func (l *LLM) Classify(ctx context.Context, text string) (Result, error) {
	if l.limiter != nil && !l.limiter.Allow() {
		return Result{}, ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	messages := []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(systemPrompt, classifyToolName)),
		schema.UserMessage(text),
	}
	response, err := l.chatModel.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{l.toolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, l.toolInfo.Name),
	)
	if err != nil {
		return Result{}, fmt.Errorf("call model failed: %w", err)
	}

	var argsJSON string
	for _, tc := range response.ToolCalls {
		if tc.Function.Name == classifyToolName {
			argsJSON = tc.Function.Arguments
			break
		}
	}
	if argsJSON == "" {
		return Result{}, fmt.Errorf("model did not call %s: %s", classifyToolName, response.Content)
	}

	var args classifyArgs
	if err := sonic.UnmarshalString(argsJSON, &args); err != nil {
		return Result{}, fmt.Errorf("parse ToolCall arguments failed: %w", err)
	}

	intent := Intent(strings.ToUpper(strings.TrimSpace(args.Intent)))
	if !intent.Valid() {
		intent = IntentUnknown
	}
	return Result{
		Intent:     intent,
		Confidence: min(max(args.Confidence, 0), 1),
		Slots: Slots{
			ToName:   args.ToName,
			Amount:   args.Amount,
			ItemName: args.ItemName,
			Qty:      args.Qty,
		},
		Source: "llm",
	}, nil
}
