package env

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/bartdeslagmulder/now-cli/internal/secrets"
)

func strPtr(s string) *string { return &s }

func TestParseEntries(t *testing.T) {
	entries := ParseEntries([]string{"A=1", "B", "C=", "D=x=y"}, KindInherit)
	want := []Entry{
		{Key: "A", Value: RawValue{Kind: KindLiteral, Literal: "1"}},
		{Key: "B", Value: RawValue{Kind: KindInherit}},
		{Key: "C", Value: RawValue{Kind: KindLiteral, Literal: ""}},
		{Key: "D", Value: RawValue{Kind: KindLiteral, Literal: "x=y"}},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("ParseEntries() = %+v, want %+v", entries, want)
	}
}

func TestFromConfig(t *testing.T) {
	entries := FromConfig(map[string]*string{"B": nil, "A": strPtr("1")})
	if len(entries) != 2 || entries[0].Key != "A" || entries[1].Key != "B" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[1].Value.Kind != KindPrompt {
		t.Errorf("expected B to be prompted, got %s", entries[1].Value.Kind)
	}
}

func TestMerge_PriorityAndDuplicates(t *testing.T) {
	dotenv := FromMap(map[string]string{"A": "dotenv", "B": "dotenv", "C": "dotenv"})
	config := FromConfig(map[string]*string{"A": strPtr("config"), "B": strPtr("config")})
	cli := ParseEntries([]string{"A=cli", "D=cli"}, KindInherit)

	merged, dups := Merge(dotenv, config, cli)

	wantValues := map[string]string{"A": "cli", "B": "config", "C": "dotenv", "D": "cli"}
	for k, want := range wantValues {
		got, ok := merged.Get(k)
		if !ok || got.Literal != want {
			t.Errorf("merged[%s] = %+v, want %q", k, got, want)
		}
	}
	if !reflect.DeepEqual(dups, []string{"A", "B"}) {
		t.Errorf("duplicates = %v, want [A B]", dups)
	}
	if !reflect.DeepEqual(merged.Keys(), []string{"A", "B", "C", "D"}) {
		t.Errorf("keys = %v", merged.Keys())
	}
}

type fakePrompter struct {
	asked   [][]string
	answers map[string]string
}

func (f *fakePrompter) PromptFields(ctx context.Context, keys []string) (map[string]string, error) {
	f.asked = append(f.asked, keys)
	out := map[string]string{}
	for _, k := range keys {
		out[k] = f.answers[k]
	}
	return out, nil
}

type fakeLister struct {
	secrets []model.Secret
}

func (f fakeLister) ListSecrets(ctx context.Context) ([]model.Secret, error) {
	return f.secrets, nil
}

func newResolver(p Prompter, environ map[string]string, list []model.Secret) *Resolver {
	return &Resolver{
		Prompter: p,
		Values:   secrets.NewResolver(fakeLister{secrets: list}),
		LookupEnv: func(k string) (string, bool) {
			v, ok := environ[k]
			return v, ok
		},
	}
}

func TestResolver_FullPipeline(t *testing.T) {
	prompter := &fakePrompter{answers: map[string]string{"TOKEN": "typed", "OTHER": "typed2"}}
	r := newResolver(prompter, map[string]string{"HOME_DIR": "/home/x", "AT": "@literal"},
		[]model.Secret{{UID: "sec_1", Name: "db"}})

	merged, _ := Merge(
		FromConfig(map[string]*string{"TOKEN": nil, "OTHER": nil, "PORT": strPtr("3000")}),
		ParseEntries([]string{"HOME_DIR", "AT", "DB=@db"}, KindInherit),
	)

	got, err := r.Resolve(context.Background(), merged)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(prompter.asked) != 1 || len(prompter.asked[0]) != 2 {
		t.Errorf("expected one prompt round with 2 keys, got %v", prompter.asked)
	}

	want := map[string]model.EnvValue{
		"TOKEN":    model.Literal("typed"),
		"OTHER":    model.Literal("typed2"),
		"PORT":     model.Literal("3000"),
		"HOME_DIR": model.Literal("/home/x"),
		"AT":       model.Literal("@literal"),
		"DB":       model.SecretRef("sec_1"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolver_Errors(t *testing.T) {
	tests := []struct {
		name     string
		entries  []Entry
		answers  map[string]string
		wantSlug string
		contains string
	}{
		{
			name:     "empty prompt answer",
			entries:  FromConfig(map[string]*string{"TOKEN": nil}),
			answers:  map[string]string{"TOKEN": ""},
			wantSlug: "missing-env-value",
			contains: "TOKEN",
		},
		{
			name:     "missing inherited value",
			entries:  ParseEntries([]string{"NOT_SET"}, KindInherit),
			wantSlug: "missing-env-value",
			contains: "NOT_SET",
		},
		{
			name:     "invalid key",
			entries:  ParseEntries([]string{"BAD-KEY=1"}, KindInherit),
			wantSlug: "invalid-env-key",
			contains: "BAD-KEY",
		},
		{
			name:     "empty key",
			entries:  ParseEntries([]string{"=1"}, KindInherit),
			wantSlug: "missing-env-key-value",
		},
		{
			name:     "missing secret",
			entries:  ParseEntries([]string{"KEY=@missing-secret"}, KindInherit),
			wantSlug: "env-no-secret",
			contains: "missing-secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(&fakePrompter{answers: tt.answers}, nil, nil)
			merged, _ := Merge(tt.entries)
			_, err := r.Resolve(context.Background(), merged)

			var ie *model.InputError
			if !errors.As(err, &ie) {
				t.Fatalf("expected InputError, got %v", err)
			}
			if ie.Slug != tt.wantSlug {
				t.Errorf("slug = %q, want %q", ie.Slug, tt.wantSlug)
			}
			if !strings.Contains(ie.Message, tt.contains) {
				t.Errorf("message %q does not contain %q", ie.Message, tt.contains)
			}
		})
	}
}

func TestResolver_NoPromptWithoutPrompter(t *testing.T) {
	r := newResolver(nil, nil, nil)
	r.Prompter = nil
	merged, _ := Merge(FromConfig(map[string]*string{"TOKEN": nil}))
	if _, err := r.Resolve(context.Background(), merged); !model.IsInputError(err) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("A=1\n# comment\nB=\"two words\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadDotenv(path)
	if err != nil {
		t.Fatalf("LoadDotenv failed: %v", err)
	}
	if got["A"] != "1" || got["B"] != "two words" {
		t.Errorf("unexpected dotenv values: %v", got)
	}

	_, err = LoadDotenv(filepath.Join(dir, "missing.env"))
	var ie *model.InputError
	if !errors.As(err, &ie) || ie.Slug != "missing-dotenv-target" {
		t.Errorf("expected missing-dotenv-target error, got %v", err)
	}
}
