package toolregistry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_RejectsDuplicateAndEmptyName(t *testing.T) {
	r := New()
	ok := ToolDefinition{Name: "echo", Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "ok", nil
	}}
	require.NoError(t, r.Register(ok))
	assert.Error(t, r.Register(ok))
	assert.Error(t, r.Register(ToolDefinition{Handler: ok.Handler}))
}

func TestRegister_FailsAfterLock(t *testing.T) {
	r := New()
	r.Lock()
	err := r.Register(ToolDefinition{Name: "echo", Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "ok", nil
	}})
	assert.Error(t, err)
}

func TestExecute_UnknownToolProducesExactString(t *testing.T) {
	r := New()
	out := r.Execute(context.Background(), "does_not_exist", nil)
	assert.Equal(t, "Unknown tool: does_not_exist", out)
}

func TestExecute_HandlerErrorProducesExactString(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(ToolDefinition{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "", errors.New("kaboom")
		},
	}))
	out := r.Execute(context.Background(), "boom", nil)
	assert.Equal(t, "Error executing boom: kaboom", out)
}

func TestExecute_EmitsStartAndEndExactlyOnce(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(ToolDefinition{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "hello", nil
		},
	}))

	var starts, ends int
	var lastSuccess bool
	r.On(EventToolStart, func(e Event) { starts++ })
	r.On(EventToolEnd, func(e Event) { ends++; lastSuccess = e.Success })

	out := r.Execute(context.Background(), "echo", map[string]interface{}{"x": 1})
	assert.Equal(t, "hello", out)
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, ends)
	assert.True(t, lastSuccess)
}

func TestExecute_SuccessIsFalseWhenOutputStartsWithError(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(ToolDefinition{
		Name: "weird",
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "Error: something went sideways", nil
		},
	}))

	var success bool
	r.On(EventToolEnd, func(e Event) { success = e.Success })
	r.Execute(context.Background(), "weird", nil)
	assert.False(t, success)
}

func TestExecute_LabelFallsBackToUsingName(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(ToolDefinition{
		Name:    "search_web",
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) { return "ok", nil },
	}))

	var label string
	r.On(EventToolStart, func(e Event) { label = e.Label })
	r.Execute(context.Background(), "search_web", nil)
	assert.Equal(t, "Using search_web", label)
}

func TestExecute_OutputPreviewTruncatedAt1200(t *testing.T) {
	r := New()
	long := strings.Repeat("a", 5000)
	require.NoError(t, r.Register(ToolDefinition{
		Name:    "dump",
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) { return long, nil },
	}))

	var preview string
	r.On(EventToolEnd, func(e Event) { preview = e.OutputPreview })
	out := r.Execute(context.Background(), "dump", nil)
	assert.Equal(t, long, out)
	assert.Len(t, preview, 1200)
}

func TestSpecs_BuildsInputSchemaWithRequired(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(ToolDefinition{
		Name: "get_weather",
		Parameters: []ToolParameter{
			{Name: "city", Type: "string", Required: true},
			{Name: "units", Type: "string", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) { return "ok", nil },
	}))

	specs := r.Specs()
	require.Len(t, specs, 1)
	spec := specs[0].(map[string]interface{})
	assert.Equal(t, "get_weather", spec["name"])
	schema := spec["input_schema"].(map[string]interface{})
	required := schema["required"].([]string)
	assert.Equal(t, []string{"city"}, required)
}
