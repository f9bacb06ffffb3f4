package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/trackscan/internal/config"
	"github.com/MeKo-Tech/trackscan/internal/hashing"
	"github.com/MeKo-Tech/trackscan/internal/models"
	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/MeKo-Tech/trackscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestHash(t *testing.T) {
	dir := isolate(t)
	testutil.WriteFile(t, dir, "a.bin", []byte("label bytes"))

	res := run(t, nil, []byte("from stdin"), "hash", "a.bin", "-")
	require.NoError(t, res.err)
	assert.Equal(t,
		hashing.Sum([]byte("label bytes"))+"  a.bin\n"+hashing.Sum([]byte("from stdin"))+"  -\n",
		res.stdout)

	res = run(t, nil, nil, "hash", "missing.bin")
	require.Error(t, res.err)
}

func TestHash_IgnoresBrokenConfig(t *testing.T) {
	dir := isolate(t)
	testutil.WriteFile(t, dir, "trackscan.yaml", []byte("log_level: loud\n"))
	testutil.WriteFile(t, dir, "a.bin", []byte("x"))

	res := run(t, nil, nil, "hash", "a.bin")
	require.NoError(t, res.err)
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)

	res := run(t, nil, nil, "config", "init")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "trackscan.yaml")

	data, err := os.ReadFile(filepath.Join(dir, "trackscan.yaml"))
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, config.DefaultConfig().Extract.Keyword, cfg.Extract.Keyword)
	assert.Equal(t, 8080, cfg.Server.Port)

	res = run(t, nil, nil, "config", "init")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already exists")

	res = run(t, nil, nil, "config", "init", "--force")
	require.NoError(t, res.err)

	res = run(t, nil, nil, "config", "init", "custom.yaml")
	require.NoError(t, res.err)
	assert.FileExists(t, filepath.Join(dir, "custom.yaml"))
}

func TestConfigShow_Precedence(t *testing.T) {
	dir := isolate(t)
	testutil.WriteFile(t, dir, "trackscan.yaml", []byte("extract:\n  workers: 2\n  keyword: FromFile\nserver:\n  port: 9000\n"))
	t.Setenv("TRACKSCAN_SERVER_PORT", "9100")

	show := func(args ...string) config.Config {
		t.Helper()
		res := run(t, nil, nil, append([]string{"config", "show"}, args...)...)
		require.NoError(t, res.err)
		var cfg config.Config
		require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &cfg))
		return cfg
	}

	cfg := show()
	assert.Equal(t, 2, cfg.Extract.Workers)
	assert.Equal(t, "FromFile", cfg.Extract.Keyword)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "info", cfg.LogLevel)

	cfg = show("--workers", "6", "--keyword", "FromFlag")
	assert.Equal(t, 6, cfg.Extract.Workers)
	assert.Equal(t, "FromFlag", cfg.Extract.Keyword)
}

func TestConfigShow_DotEnv(t *testing.T) {
	dir := isolate(t)
	testutil.WriteFile(t, dir, ".env", []byte("TRACKSCAN_EXTRACT_KEYWORD=FromDotEnv\n"))
	t.Setenv("TRACKSCAN_EXTRACT_KEYWORD", "")
	require.NoError(t, os.Unsetenv("TRACKSCAN_EXTRACT_KEYWORD"))

	res := run(t, nil, nil, "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "keyword: FromDotEnv")
}

func TestModels(t *testing.T) {
	dir := isolate(t)
	modelsDir := filepath.Join(dir, "models")
	d := config.DefaultConfig().Engine
	for _, p := range []string{
		models.GetDetectionModelPath(modelsDir, d.DetectionModel),
		models.GetRecognitionModelPath(modelsDir, d.RecognitionModel),
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("onnx"), 0o600))
	}

	res := run(t, nil, nil, "models", "--models-dir", modelsDir, "--json")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "1 model file(s) missing")

	var list []models.ModelInfo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &list))
	require.Len(t, list, 3)
	assert.True(t, list[0].Present)
	assert.True(t, list[1].Present)
	assert.False(t, list[2].Present)

	dict := models.GetDictionaryPath(modelsDir, d.Dictionary)
	require.NoError(t, os.MkdirAll(filepath.Dir(dict), 0o755))
	require.NoError(t, os.WriteFile(dict, []byte("0\n1\n"), 0o600))

	res = run(t, nil, nil, "models", "--models-dir", modelsDir)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "NAME")
	assert.Contains(t, res.stdout, d.DetectionModel)
}

func TestServerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Port = 9001
	cfg.Server.MaxUploadMB = 7
	cfg.Server.RateLimitEnabled = true
	cfg.Server.RequestsPerMinute = 3

	sc := serverConfig(&cfg)
	assert.Equal(t, 9001, sc.Port)
	assert.Equal(t, int64(7), sc.MaxUploadMB)
	assert.True(t, sc.RateLimitEnabled)
	assert.Equal(t, 3, sc.RateLimit.RequestsPerMinute)
	assert.Equal(t, ocr.BackendONNX, sc.Engine.Backend)
	assert.Len(t, sc.Engine.Models, 3)

	cfg.Engine.Backend = ocr.BackendTesseract
	assert.Empty(t, serverConfig(&cfg).Engine.Models)
}

func TestServe_InvalidPort(t *testing.T) {
	isolate(t)
	res := run(t, testutil.NewScriptedEngine(), nil, "serve", "--port", "70000")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid server port")
}
