// Package recommend orchestrates the query path: retrieve grounding context
// for a free-text question, assemble it under a budget, and ask the LLM for a
// recommendation grounded only in that context. Every answer carries the ids
// of the products it was grounded in so callers can audit provenance.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/gearsage/gearsage-go/internal/grounding"
	"github.com/gearsage/gearsage-go/internal/logging"
	"github.com/gearsage/gearsage-go/internal/rag"
	"github.com/gearsage/gearsage-go/internal/retry"
)

// systemPrompt establishes the recommender persona and the grounding rules.
// The model must answer only from the supplied context and decline when the
// context does not cover the question.
const systemPrompt = `You are a product recommender system specialist in GAMING GEAR that helps
users find the best products based on their preferences.

Use only the pieces of context supplied with each question to answer it. The
context describes real products: title, category, price, technical specs, and
review summaries.

For each question, suggest the best matching products with a short description
and the reason why the user might like them. Focus on the most relevant
aspects based on the user's query. When you mention a product, cite its ID in
the form [ID: <id>] so the recommendation can be traced back to the catalog.

If the supplied context does not contain enough information to answer, just
say that you don't know — do not try to make up an answer and do not draw on
outside knowledge.`

// lowConfidenceAnswer is returned without calling the model when retrieval
// produced no grounding at all.
const lowConfidenceAnswer = "I don't have any matching products in the catalog for that query, " +
	"so I can't make a confident recommendation. Try rephrasing, or broaden the category or budget."

const (
	// DefaultTopK is the number of products retrieved per query.
	DefaultTopK = 5
	// DefaultEmbedTimeout bounds the retrieval step, which includes the
	// query embedding call.
	DefaultEmbedTimeout = 10 * time.Second
	// DefaultGenerateTimeout bounds a single LLM generation attempt.
	DefaultGenerateTimeout = 30 * time.Second
)

// Response is the result of one recommendation query.
type Response struct {
	// Answer is the model's recommendation text, or a canned low-confidence
	// message when no grounding was available.
	Answer string `json:"answer"`

	// CitedProductIDs lists the ids of the products whose context units were
	// supplied to the model, in rank order. Empty for low-confidence answers.
	CitedProductIDs []string `json:"cited_product_ids"`

	// LowConfidence is true when the answer was produced without grounding.
	LowConfidence bool `json:"low_confidence"`
}

// Config holds the dependencies and tuning for a Recommender.
type Config struct {
	// Retriever fetches ranked grounding candidates for the query.
	Retriever rag.Retriever

	// ChatModel is the LLM backend constructed by the generator factory.
	ChatModel model.ToolCallingChatModel

	// TopK is the number of products to retrieve per query. Defaults to
	// DefaultTopK if zero.
	TopK int

	// MaxGroundingChars caps the assembled context size. Defaults to
	// grounding.DefaultMaxChars if zero.
	MaxGroundingChars int

	// EmbedTimeout bounds the retrieval step. Defaults to DefaultEmbedTimeout.
	EmbedTimeout time.Duration

	// GenerateTimeout bounds each generation attempt. Defaults to
	// DefaultGenerateTimeout.
	GenerateTimeout time.Duration
}

// Recommender runs the retrieve → assemble → generate pipeline.
type Recommender struct {
	retriever         rag.Retriever
	chatModel         model.ToolCallingChatModel
	topK              int
	maxGroundingChars int
	embedTimeout      time.Duration
	generateTimeout   time.Duration
	embedRetry        *retry.Policy
	generateRetry     *retry.Policy
}

// New constructs a Recommender from the provided Config.
func New(cfg *Config) (*Recommender, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("recommend: Retriever must not be nil")
	}
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("recommend: ChatModel must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	maxChars := cfg.MaxGroundingChars
	if maxChars <= 0 {
		maxChars = grounding.DefaultMaxChars
	}
	embedTimeout := cfg.EmbedTimeout
	if embedTimeout <= 0 {
		embedTimeout = DefaultEmbedTimeout
	}
	generateTimeout := cfg.GenerateTimeout
	if generateTimeout <= 0 {
		generateTimeout = DefaultGenerateTimeout
	}

	return &Recommender{
		retriever:         cfg.Retriever,
		chatModel:         cfg.ChatModel,
		topK:              topK,
		maxGroundingChars: maxChars,
		embedTimeout:      embedTimeout,
		generateTimeout:   generateTimeout,
		embedRetry:        retry.NewPolicy(rag.IsRetryableEmbedding),
		generateRetry:     retry.NewPolicy(IsRetryableGeneration),
	}, nil
}

// Recommend answers a free-text query with at most k grounded product
// recommendations. A k of zero or less uses the configured default.
//
// When retrieval yields nothing — empty index, or every candidate filtered
// away — the model is never called: the response is a fixed low-confidence
// answer with no cited ids, so an empty catalog can never hallucinate a
// recommendation.
func (r *Recommender) Recommend(ctx context.Context, query string, k int) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("recommend: query must not be empty")
	}
	if k <= 0 {
		k = r.topK
	}
	log := logging.FromContext(ctx)

	hits, err := r.retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	block := grounding.Assemble(hits, r.maxGroundingChars)
	if block.Empty() {
		log.Info("no grounding retrieved, returning low-confidence answer",
			slog.String("query", query),
		)
		return &Response{
			Answer:        lowConfidenceAnswer,
			LowConfidence: true,
		}, nil
	}

	answer, err := r.generate(ctx, query, block)
	if err != nil {
		return nil, err
	}

	log.Debug("recommendation generated",
		slog.Int("grounded_products", len(block.IncludedIDs)),
		slog.Int("answer_chars", len(answer)),
	)

	return &Response{
		Answer:          answer,
		CitedProductIDs: block.IncludedIDs,
	}, nil
}

// retrieve runs the retriever under the embed timeout, retrying transient
// embedding failures.
func (r *Recommender) retrieve(ctx context.Context, query string, k int) ([]rag.SearchHit, error) {
	return retry.DoValue(ctx, r.embedRetry, func() ([]rag.SearchHit, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
		defer cancel()
		hits, err := r.retriever.Retrieve(attemptCtx, query, k)
		if err != nil {
			return nil, fmt.Errorf("recommend: retrieval failed: %w", err)
		}
		return hits, nil
	})
}

// generate calls the chat model under the generate timeout, retrying
// transient backend failures. Blank output is malformed and final.
func (r *Recommender) generate(ctx context.Context, query string, block *grounding.Block) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf("Context:\n%s\n\nQuestion: %s", block.Text, query)),
	}

	return retry.DoValue(ctx, r.generateRetry, func() (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.generateTimeout)
		defer cancel()

		msg, err := r.chatModel.Generate(attemptCtx, messages)
		if err != nil {
			return "", ClassifyGenerationError(err)
		}
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			return "", &GenerationError{Kind: GenerationMalformedOutput}
		}
		return msg.Content, nil
	})
}
