// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	bedrockcfg "github.com/z5labs/bedrock/config"
	"github.com/z5labs/klaim/schema"
)

// ConfigSource standardizes the template for declaring apis in YAML.
// The [io.Reader] is expected to be YAML with support for Go templating.
// Currently, only 2 template functions are supported:
//   - env - this allows environment variables to be substituted into the YAML
//   - default - define a default value in case the original value is nil
func ConfigSource(r io.Reader) bedrockcfg.Source {
	return bedrockcfg.FromYaml(
		bedrockcfg.RenderTextTemplate(
			r,
			bedrockcfg.TemplateFunc("env", func(key string) any {
				v, ok := os.LookupEnv(key)
				if ok {
					return v
				}
				return nil
			}),
			bedrockcfg.TemplateFunc("default", func(def, v any) any {
				if v == nil {
					return def
				}
				return v
			}),
		),
	)
}

// Config is the root of a YAML declaration document.
//
//	apis:
//	  - name: jsonPlaceholder
//	    url: https://jsonplaceholder.typicode.com
//	    headers:
//	      Authorization: Bearer {{env "TOKEN"}}
//	    retry: 2
//	    routes:
//	      - name: todo
//	        method: GET
//	        url: /todos/[id]
//	        cache: 20
//
// Durations are expressed in seconds.
type Config struct {
	Apis   []ApiConfig   `config:"apis"`
	Groups []GroupConfig `config:"groups"`
}

// RateConfig
type RateConfig struct {
	Limit    int     `config:"limit"`
	Duration float64 `config:"duration"`
}

// TimeoutConfig
type TimeoutConfig struct {
	Duration float64 `config:"duration"`
	Message  string  `config:"message"`
}

// PaginationConfig
type PaginationConfig struct {
	Page       int    `config:"page"`
	PageParam  string `config:"page_param"`
	Limit      int    `config:"limit"`
	LimitParam string `config:"limit_param"`
}

// ApiConfig declares an api with its groups and routes.
type ApiConfig struct {
	Name    string            `config:"name"`
	URL     string            `config:"url"`
	Headers map[string]string `config:"headers"`
	Cache   *float64          `config:"cache"`
	Retry   *int              `config:"retry"`
	Rate    *RateConfig       `config:"rate"`
	Timeout *TimeoutConfig    `config:"timeout"`
	Groups  []GroupConfig     `config:"groups"`
	Routes  []RouteConfig     `config:"routes"`
}

// GroupConfig declares a group. Groups may hold routes, when nested in
// an api, or apis, when used as a namespace.
type GroupConfig struct {
	Name    string         `config:"name"`
	Cache   *float64       `config:"cache"`
	Retry   *int           `config:"retry"`
	Rate    *RateConfig    `config:"rate"`
	Timeout *TimeoutConfig `config:"timeout"`
	Apis    []ApiConfig    `config:"apis"`
	Groups  []GroupConfig  `config:"groups"`
	Routes  []RouteConfig  `config:"routes"`
}

// RouteConfig declares a single route. Schema is an optional inline
// JSON Schema document used to validate responses.
type RouteConfig struct {
	Name       string            `config:"name"`
	Method     string            `config:"method"`
	URL        string            `config:"url"`
	Headers    map[string]string `config:"headers"`
	Cache      *float64          `config:"cache"`
	Retry      *int              `config:"retry"`
	Rate       *RateConfig       `config:"rate"`
	Timeout    *TimeoutConfig    `config:"timeout"`
	Pagination *PaginationConfig `config:"pagination"`
	Schema     string            `config:"schema"`
}

// Load reads a declaration document and registers every element in it.
func (k *Klaim) Load(src bedrockcfg.Source) error {
	m, err := bedrockcfg.Read(src)
	if err != nil {
		return err
	}

	var cfg Config
	err = m.Unmarshal(&cfg)
	if err != nil {
		return err
	}
	return k.Declare(cfg)
}

// Declare registers every element described by cfg.
func (k *Klaim) Declare(cfg Config) (err error) {
	defer recoverRegistration(&err)

	for _, api := range cfg.Apis {
		k.declareApiConfig(api)
	}
	for _, group := range cfg.Groups {
		k.declareGroupConfig(group)
	}
	return nil
}

func (k *Klaim) declareApiConfig(cfg ApiConfig) {
	e := k.declareApi(cfg.Name, cfg.URL, func(b *Builder) {
		for _, group := range cfg.Groups {
			k.declareGroupConfig(group)
		}
		for _, route := range cfg.Routes {
			k.declareRouteConfig(route)
		}
	}, []ElementOption{WithHeaders(cfg.Headers)})

	applySettings(e, cfg.Cache, cfg.Retry, cfg.Rate, cfg.Timeout)
}

func (k *Klaim) declareGroupConfig(cfg GroupConfig) {
	e := k.declareGroup(cfg.Name, func(b *Builder) {
		for _, api := range cfg.Apis {
			k.declareApiConfig(api)
		}
		for _, group := range cfg.Groups {
			k.declareGroupConfig(group)
		}
		for _, route := range cfg.Routes {
			k.declareRouteConfig(route)
		}
	})

	applySettings(e, cfg.Cache, cfg.Retry, cfg.Rate, cfg.Timeout)
}

func (k *Klaim) declareRouteConfig(cfg RouteConfig) {
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions:
	default:
		panic(&RegistrationError{Path: cfg.Name, Reason: fmt.Sprintf("unsupported method %q", cfg.Method)})
	}

	opts := []ElementOption{WithHeaders(cfg.Headers)}
	if cfg.Schema != "" {
		s, err := schema.CompileJSONSchema(cfg.Name+".json", []byte(cfg.Schema))
		if err != nil {
			panic(&RegistrationError{Path: cfg.Name, Reason: err.Error()})
		}
		opts = append(opts, WithSchema(s))
	}

	e := k.declareRoute(method, cfg.Name, cfg.URL, opts)
	applySettings(e, cfg.Cache, cfg.Retry, cfg.Rate, cfg.Timeout)

	if p := cfg.Pagination; p != nil {
		e.WithPagination(Pagination{
			Page:       p.Page,
			PageParam:  p.PageParam,
			Limit:      p.Limit,
			LimitParam: p.LimitParam,
		})
	}
}

func applySettings(e *Element, cache *float64, retry *int, rate *RateConfig, to *TimeoutConfig) {
	if cache != nil {
		e.WithCache(seconds(*cache))
	}
	if retry != nil {
		e.WithRetry(*retry)
	}
	if rate != nil {
		e.WithRate(Rate{Limit: rate.Limit, Duration: seconds(rate.Duration)})
	}
	if to != nil {
		e.WithTimeout(Timeout{Duration: seconds(to.Duration), Message: to.Message})
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
