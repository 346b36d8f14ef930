package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/internal/model"
)

// trainEnv keeps runs offline and small
func trainEnv(t *testing.T, families string) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("POSTGRES_HOST", "")
	t.Setenv("CLICKHOUSE_HOST", "")
	t.Setenv("TRAINING_ITERATIONS", "1")
	t.Setenv("TRAINING_FOLDS", "3")
	t.Setenv("TRAINING_FAMILIES", families)
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// labeledCSV renders n rows whose risk rises with AGE
func labeledCSV(n int, header string) string {
	var b strings.Builder
	b.WriteString(header + "\n")
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < n; i++ {
		age := 40 + rng.Float64()*50
		risk := 1.5 * (age - 40)
		fmt.Fprintf(&b, "p%d,%.2f,%.1f,%.3f,%.3f,%.3f\n", i, age, 20+rng.Float64()*15, risk, risk+5, risk+10)
	}
	return b.String()
}

func TestRun_TrainsAndSavesArtifact(t *testing.T) {
	trainEnv(t, "ridge")
	data := writeCSV(t, labeledCSV(60, "DESYNPUF_ID,AGE,BMI,RISK_30D,RISK_60D,RISK_90D"))
	out := t.TempDir()

	code := run([]string{"-data", data, "-out", out, "-activate=false"})
	require.Equal(t, 0, code)

	metas, err := model.NewFileStore(out).List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "ridge", metas[0].Champion)
}

func TestRun_MissingLabelColumnFails(t *testing.T) {
	trainEnv(t, "ridge")
	// RISK_90D header is absent; the fifth value lands in no column
	csv := labeledCSV(20, "DESYNPUF_ID,AGE,BMI,RISK_30D,RISK_60D,EXTRA")
	out := t.TempDir()

	assert.Equal(t, 1, run([]string{"-data", writeCSV(t, csv), "-out", out}))
	assertNoArtifacts(t, out)
}

func TestRun_AllUnlabeledFails(t *testing.T) {
	trainEnv(t, "ridge")
	var b strings.Builder
	b.WriteString("DESYNPUF_ID,AGE,BMI,RISK_30D,RISK_60D,RISK_90D\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "p%d,%d,25,,,\n", i, 50+i)
	}
	out := t.TempDir()

	assert.Equal(t, 1, run([]string{"-data", writeCSV(t, b.String()), "-out", out}))
	assertNoArtifacts(t, out)
}

func TestRun_AllCandidatesFail(t *testing.T) {
	// 30 rows leave too few rows per fold for unpenalized OLS on 29 features
	trainEnv(t, "ols")
	data := writeCSV(t, labeledCSV(30, "DESYNPUF_ID,AGE,BMI,RISK_30D,RISK_60D,RISK_90D"))
	out := t.TempDir()

	assert.Equal(t, 1, run([]string{"-data", data, "-out", out}))
	assertNoArtifacts(t, out)
}

func TestRun_Usage(t *testing.T) {
	trainEnv(t, "ridge")

	assert.Equal(t, 2, run(nil), "missing -data")
	assert.Equal(t, 2, run([]string{"-nope"}), "unknown flag")
}

func TestRun_InvalidPreset(t *testing.T) {
	trainEnv(t, "ridge")
	data := writeCSV(t, labeledCSV(10, "DESYNPUF_ID,AGE,BMI,RISK_30D,RISK_60D,RISK_90D"))

	assert.Equal(t, 1, run([]string{"-data", data, "-out", t.TempDir(), "-preset", "turbo"}))
}

func assertNoArtifacts(t *testing.T, dir string) {
	t.Helper()
	metas, err := model.NewFileStore(dir).List()
	require.NoError(t, err)
	assert.Empty(t, metas)
}
