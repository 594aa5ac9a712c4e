// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/z5labs/klaim"
)

type todo struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func ExampleCall() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":1,"title":"delectus aut autem"}`)
	}))
	defer srv.Close()

	k := klaim.New(klaim.WithLogger(slog.New(slog.DiscardHandler)))

	_, err := k.Api("jsonPlaceholder", srv.URL, func(b *klaim.Builder) {
		b.Get("todo", "/todos/[id:number]").WithCache(time.Minute)
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	t, err := klaim.Call[todo](context.Background(), k, "jsonPlaceholder.todo", klaim.Arg("id", 1))
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(t.Title)
	// Output: delectus aut autem
}

func ExampleKlaim_Call_missingArgument() {
	k := klaim.New(klaim.WithLogger(slog.New(slog.DiscardHandler)))

	_, err := k.Api("jsonPlaceholder", "https://jsonplaceholder.typicode.com", func(b *klaim.Builder) {
		b.Get("todo", "/todos/[id]")
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	_, err = k.Call(context.Background(), "jsonPlaceholder.todo")
	fmt.Println(err)
	// Output: Argument id is missing
}
