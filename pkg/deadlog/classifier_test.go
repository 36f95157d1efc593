package deadlog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadlog/deadlog-go/pkg/deadlog"
	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

func TestDefaultClassifier(t *testing.T) {
	c := deadlog.DefaultClassifier{}
	ctx := context.Background()

	tests := []struct {
		name      string
		line      string
		wantMatch bool
		wantType  event.Type
	}{
		{
			name:      "queue_join",
			line:      queueLine("Alice", "aaaa0001"),
			wantMatch: true,
			wantType:  event.QueueJoin,
		},
		{
			name:      "player_join",
			line:      joinLine("aaaa0001"),
			wantMatch: true,
			wantType:  event.PlayerJoin,
		},
		{
			name:      "disconnect",
			line:      dropLine("aaaa0001"),
			wantMatch: true,
			wantType:  event.Disconnect,
		},
		{
			name:      "queue_drop",
			line:      queueDropLine("aaaa0001"),
			wantMatch: true,
			wantType:  event.Disconnect,
		},
		{
			name:      "unrecognized",
			line:      "random text",
			wantMatch: false,
		},
		{
			name:      "empty",
			line:      "",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.ClassifyLine(ctx, tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMatch, result.Matched)
			if tt.wantMatch {
				require.Len(t, result.Events, 1)
				assert.Equal(t, tt.wantType, result.Events[0].Type)
			} else {
				assert.Empty(t, result.Events)
			}
		})
	}
}

func TestDefaultClassifier_RuleNames(t *testing.T) {
	names := deadlog.DefaultClassifier{}.RuleNames()
	assert.Contains(t, names, "queue_join")
	assert.Contains(t, names, "player_join")
	assert.Contains(t, names, "disconnect_post_join")
	assert.Contains(t, names, "disconnect_pre_join")
}

func TestClassifierFunc(t *testing.T) {
	called := false
	c := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		called = true
		assert.Equal(t, "test line", line)
		return deadlog.ClassifyResult{Matched: true}, nil
	})

	result, err := c.ClassifyLine(context.Background(), "test line")
	require.NoError(t, err)
	assert.True(t, called)
	assert.True(t, result.Matched)
}

func TestClassifierChain_ChainAll(t *testing.T) {
	c1 := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		return deadlog.ClassifyResult{
			Events:  []event.Event{{Type: "type1"}},
			Matched: true,
		}, nil
	})
	c2 := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		return deadlog.ClassifyResult{
			Events:  []event.Event{{Type: "type2"}},
			Matched: true,
		}, nil
	})

	chain := &deadlog.ClassifierChain{
		Mode:        deadlog.ChainAll,
		Classifiers: []deadlog.Classifier{c1, c2},
	}

	result, err := chain.ClassifyLine(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	require.Len(t, result.Events, 2)
	assert.Equal(t, event.Type("type1"), result.Events[0].Type)
	assert.Equal(t, event.Type("type2"), result.Events[1].Type)
}

func TestClassifierChain_ChainFirst(t *testing.T) {
	callOrder := []int{}
	c1 := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		callOrder = append(callOrder, 1)
		return deadlog.ClassifyResult{
			Events:  []event.Event{{Type: "type1"}},
			Matched: true,
		}, nil
	})
	c2 := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		callOrder = append(callOrder, 2)
		return deadlog.ClassifyResult{
			Events:  []event.Event{{Type: "type2"}},
			Matched: true,
		}, nil
	})

	chain := &deadlog.ClassifierChain{
		Mode:        deadlog.ChainFirst,
		Classifiers: []deadlog.Classifier{c1, c2},
	}

	result, err := chain.ClassifyLine(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Len(t, result.Events, 1)
	assert.Equal(t, []int{1}, callOrder) // c2 should not be called
}

func TestClassifierChain_ChainFirst_NoMatch(t *testing.T) {
	c1 := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		return deadlog.ClassifyResult{Matched: false}, nil
	})
	c2 := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		return deadlog.ClassifyResult{
			Events:  []event.Event{{Type: "type2"}},
			Matched: true,
		}, nil
	})

	chain := &deadlog.ClassifierChain{
		Mode:        deadlog.ChainFirst,
		Classifiers: []deadlog.Classifier{c1, c2},
	}

	result, err := chain.ClassifyLine(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	require.Len(t, result.Events, 1)
	assert.Equal(t, event.Type("type2"), result.Events[0].Type)
}

func TestClassifierChain_ChainContinueOnError(t *testing.T) {
	c1 := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		return deadlog.ClassifyResult{}, errors.New("c1 error")
	})
	c2 := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		return deadlog.ClassifyResult{
			Events:  []event.Event{{Type: "type2"}},
			Matched: true,
		}, nil
	})

	chain := &deadlog.ClassifierChain{
		Mode:        deadlog.ChainContinueOnError,
		Classifiers: []deadlog.Classifier{c1, c2},
	}

	result, err := chain.ClassifyLine(context.Background(), "test")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "c1 error")
	assert.True(t, result.Matched) // c2's result should be included
	assert.Len(t, result.Events, 1)
}

func TestClassifierChain_CancelledContext(t *testing.T) {
	c1 := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		return deadlog.ClassifyResult{Matched: true}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := &deadlog.ClassifierChain{Classifiers: []deadlog.Classifier{c1}}
	_, err := chain.ClassifyLine(ctx, "test")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifierChain_RuleNames(t *testing.T) {
	chain := &deadlog.ClassifierChain{
		Classifiers: []deadlog.Classifier{
			deadlog.DefaultClassifier{},
			deadlog.DefaultClassifier{},
		},
	}

	names := chain.RuleNames()
	assert.Contains(t, names, "queue_join")

	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "duplicate rule name %q", n)
		seen[n] = true
	}
}
