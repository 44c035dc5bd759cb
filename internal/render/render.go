// Package render подставляет переменные запуска в аргументы stages
// и в payload уведомлений.
//
// Используются Go templates:
//
//	{{ .RunID }}         — идентификатор запуска
//	{{ .WorkDir }}       — рабочая директория
//	{{ .Date }}          — дата старта запуска (UTC, YYYY-MM-DD)
//	{{ .Env.VAR_NAME }}  — переменная окружения процесса
//
// Строки без "{{" возвращаются как есть.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"
)

var (
	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")

	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")
)

// Vars — переменные, доступные в шаблонах.
type Vars struct {
	RunID   string
	WorkDir string
	Date    string
	Env     map[string]string
}

// NewVars создаёт Vars для запуска, начатого в момент started.
func NewVars(runID, workDir string, started time.Time) Vars {
	return Vars{
		RunID:   runID,
		WorkDir: workDir,
		Date:    started.UTC().Format(time.DateOnly),
		Env:     environ(),
	}
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

var funcs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — значение по умолчанию для пустой строки или nil
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
	"trim":    strings.TrimSpace,
	"replace": strings.ReplaceAll,
}

func parse(tmpl string) (*template.Template, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	return t, nil
}

// Check проверяет синтаксис шаблона без рендеринга.
func Check(tmpl string) error {
	if !strings.Contains(tmpl, "{{") {
		return nil
	}
	_, err := parse(tmpl)
	return err
}

// Render рендерит строковый шаблон.
func Render(tmpl string, vars Vars) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

// Args рендерит каждый аргумент командной строки.
func Args(args []string, vars Vars) ([]string, error) {
	if args == nil {
		return nil, nil
	}

	out := make([]string, len(args))
	for i, a := range args {
		r, err := Render(a, vars)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

// Value рекурсивно рендерит строки внутри map и slice.
// Остальные типы возвращаются как есть.
func Value(value any, vars Vars) (any, error) {
	switch v := value.(type) {
	case string:
		return Render(v, vars)

	case map[string]any:
		return Payload(v, vars)

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := Value(val, vars)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case []string:
		return Args(v, vars)

	default:
		return value, nil
	}
}

// Payload рендерит значения map. nil остаётся nil.
func Payload(payload map[string]any, vars Vars) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}

	result := make(map[string]any, len(payload))
	for key, val := range payload {
		rendered, err := Value(val, vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		result[key] = rendered
	}
	return result, nil
}
