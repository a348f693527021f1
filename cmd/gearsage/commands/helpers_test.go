package commands

import (
	"context"
	"os"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/gearsage/gearsage-go/internal/rag"
)

type stubRetriever struct{}

func (stubRetriever) Retrieve(context.Context, string, int) ([]rag.SearchHit, error) {
	return nil, nil
}

type stubChatModel struct{}

func (stubChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, nil
}

func (stubChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (s stubChatModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return s, nil
}

// RETRIEVAL_GROUNDING_CHARS set via config or env must reach the recommender.
func TestRecommendConfig_GroundingCharsFromEnv(t *testing.T) {
	t.Setenv("RETRIEVAL_GROUNDING_CHARS", "2500")

	cfg := recommendConfig(stubRetriever{}, stubChatModel{})
	if cfg.MaxGroundingChars != 2500 {
		t.Errorf("MaxGroundingChars = %d, want 2500", cfg.MaxGroundingChars)
	}

	os.Unsetenv("RETRIEVAL_GROUNDING_CHARS")
	cfg = recommendConfig(stubRetriever{}, stubChatModel{})
	if cfg.MaxGroundingChars != 0 {
		t.Errorf("MaxGroundingChars = %d, want 0 (package default) when unset", cfg.MaxGroundingChars)
	}
}

func TestListenAddr(t *testing.T) {
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SERVER_PORT", "9999")

	tests := []struct {
		name     string
		flagHost string
		hostSet  bool
		flagPort int
		portSet  bool
		wantHost string
		wantPort int
	}{
		{"env fills unset flags", "127.0.0.1", false, 8080, false, "0.0.0.0", 9999},
		{"explicit flags win over env", "10.1.1.1", true, 7070, true, "10.1.1.1", 7070},
		{"mixed: host flag, port env", "10.1.1.1", true, 8080, false, "10.1.1.1", 9999},
	}
	for _, tt := range tests {
		host, port := listenAddr(tt.flagHost, tt.hostSet, tt.flagPort, tt.portSet)
		if host != tt.wantHost || port != tt.wantPort {
			t.Errorf("%s: listenAddr = (%q, %d), want (%q, %d)", tt.name, host, port, tt.wantHost, tt.wantPort)
		}
	}
}

func TestListenAddr_Defaults(t *testing.T) {
	t.Setenv("SERVER_HOST", "")
	t.Setenv("SERVER_PORT", "")
	os.Unsetenv("SERVER_HOST")
	os.Unsetenv("SERVER_PORT")

	host, port := listenAddr("127.0.0.1", false, 8080, false)
	if host != "127.0.0.1" || port != 8080 {
		t.Errorf("listenAddr = (%q, %d), want flag defaults", host, port)
	}
}
