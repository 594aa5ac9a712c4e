// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noopLeaf(string) RouteFunc {
	return func(context.Context, ...CallOption) (any, error) {
		return nil, nil
	}
}

func TestRegistry_Push(t *testing.T) {
	t.Run("will return a registration error", func(t *testing.T) {
		t.Run("if the path is unknown", func(t *testing.T) {
			r := NewRegistry(noopLeaf)

			err := r.Push("missing")

			var rerr *RegistrationError
			require.ErrorAs(t, err, &rerr)
		})

		t.Run("if the path is a route", func(t *testing.T) {
			r := NewRegistry(noopLeaf)
			require.NoError(t, r.Register(&Element{Kind: KindApi, Name: "api"}))
			require.NoError(t, r.Push("api"))
			require.NoError(t, r.RegisterRoute(&Element{Kind: KindRoute, Name: "route"}))

			err := r.Push("api.route")

			var rerr *RegistrationError
			require.ErrorAs(t, err, &rerr)
		})
	})

	t.Run("will restore the previous context on pop", func(t *testing.T) {
		r := NewRegistry(noopLeaf)
		require.NoError(t, r.Register(&Element{Kind: KindGroup, Name: "outer"}))
		require.NoError(t, r.Push("outer"))
		require.NoError(t, r.Register(&Element{Kind: KindApi, Name: "inner"}))
		require.NoError(t, r.Push("outer.inner"))

		cur, ok := r.Current()
		require.True(t, ok)
		require.Equal(t, "outer.inner", cur)

		r.Pop()
		cur, ok = r.Current()
		require.True(t, ok)
		require.Equal(t, "outer", cur)

		r.Pop()
		_, ok = r.Current()
		require.False(t, ok)

		r.Pop()
		_, ok = r.Current()
		require.False(t, ok)
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Run("will reject routes", func(t *testing.T) {
		r := NewRegistry(noopLeaf)

		err := r.Register(&Element{Kind: KindRoute, Name: "route"})

		var rerr *RegistrationError
		require.ErrorAs(t, err, &rerr)
	})

	t.Run("will parent the element to the current context", func(t *testing.T) {
		r := NewRegistry(noopLeaf)
		require.NoError(t, r.Register(&Element{Kind: KindGroup, Name: "public"}))
		require.NoError(t, r.Push("public"))

		api := &Element{Kind: KindApi, Name: "api"}
		require.NoError(t, r.Register(api))
		require.Equal(t, "public", api.Parent)
		require.Equal(t, "public.api", r.FullPath(api))

		n, ok := r.Tree().Lookup("public.api")
		require.True(t, ok)
		require.Equal(t, KindApi, n.Kind())
	})

	t.Run("will drop the previous children", func(t *testing.T) {
		t.Run("if the element is registered again", func(t *testing.T) {
			r := NewRegistry(noopLeaf)
			require.NoError(t, r.Register(&Element{Kind: KindApi, Name: "api", URL: "old"}))
			require.NoError(t, r.Push("api"))
			require.NoError(t, r.RegisterRoute(&Element{Kind: KindRoute, Name: "stale"}))
			r.Pop()
			require.NoError(t, r.Register(&Element{Kind: KindApi, Name: "other"}))

			require.NoError(t, r.Register(&Element{Kind: KindApi, Name: "api", URL: "new"}))

			_, ok := r.Get("api.stale")
			require.False(t, ok)

			_, ok = r.Tree().Lookup("api.stale")
			require.False(t, ok)

			e, ok := r.Get("api")
			require.True(t, ok)
			require.Equal(t, "new", e.URL)
			require.Len(t, r.Elements(), 2)
		})
	})
}

func TestRegistry_RegisterRoute(t *testing.T) {
	t.Run("will return a registration error", func(t *testing.T) {
		t.Run("if there is no context", func(t *testing.T) {
			r := NewRegistry(noopLeaf)

			err := r.RegisterRoute(&Element{Kind: KindRoute, Name: "route"})

			var rerr *RegistrationError
			require.ErrorAs(t, err, &rerr)
		})

		t.Run("if the element is not a route", func(t *testing.T) {
			r := NewRegistry(noopLeaf)

			err := r.RegisterRoute(&Element{Kind: KindGroup, Name: "group"})

			var rerr *RegistrationError
			require.ErrorAs(t, err, &rerr)
		})
	})

	t.Run("will install a callable leaf", func(t *testing.T) {
		var keys []string
		r := NewRegistry(func(key string) RouteFunc {
			keys = append(keys, key)
			return noopLeaf(key)
		})
		require.NoError(t, r.Register(&Element{Kind: KindApi, Name: "api"}))
		require.NoError(t, r.Push("api"))
		require.NoError(t, r.RegisterRoute(&Element{Kind: KindRoute, Name: "route"}))

		require.Equal(t, []string{"api.route"}, keys)

		n, ok := r.Tree().Lookup("api.route")
		require.True(t, ok)
		require.Equal(t, KindRoute, n.Kind())
	})
}

func TestRegistry_Api(t *testing.T) {
	r := NewRegistry(noopLeaf)
	require.NoError(t, r.Register(&Element{Kind: KindGroup, Name: "public"}))
	require.NoError(t, r.Push("public"))
	require.NoError(t, r.Register(&Element{Kind: KindApi, Name: "todos"}))
	require.NoError(t, r.Push("public.todos"))
	require.NoError(t, r.Register(&Element{Kind: KindGroup, Name: "users"}))
	require.NoError(t, r.Push("public.todos.users"))
	require.NoError(t, r.RegisterRoute(&Element{Kind: KindRoute, Name: "list"}))

	t.Run("will resolve the owning api", func(t *testing.T) {
		testCases := []struct {
			Name string
			Path string
		}{
			{Name: "of the api itself", Path: "public.todos"},
			{Name: "of a nested group", Path: "public.todos.users"},
			{Name: "of a route", Path: "public.todos.users.list"},
			{Name: "of a dotted suffix", Path: "todos.users"},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				api, ok := r.Api(testCase.Path)
				require.True(t, ok)
				require.Equal(t, "todos", api.Name)
			})
		}
	})

	t.Run("will not resolve an api", func(t *testing.T) {
		t.Run("if the path is above every api", func(t *testing.T) {
			_, ok := r.Api("public")
			require.False(t, ok)
		})

		t.Run("if the path is unknown", func(t *testing.T) {
			_, ok := r.Api("missing")
			require.False(t, ok)
		})
	})
}

func TestRegistry_Children(t *testing.T) {
	t.Run("will return direct children in registration order", func(t *testing.T) {
		r := NewRegistry(noopLeaf)
		require.NoError(t, r.Register(&Element{Kind: KindApi, Name: "api"}))
		require.NoError(t, r.Push("api"))
		require.NoError(t, r.RegisterRoute(&Element{Kind: KindRoute, Name: "b"}))
		require.NoError(t, r.Register(&Element{Kind: KindGroup, Name: "g"}))
		require.NoError(t, r.Push("api.g"))
		require.NoError(t, r.RegisterRoute(&Element{Kind: KindRoute, Name: "nested"}))
		r.Pop()
		require.NoError(t, r.RegisterRoute(&Element{Kind: KindRoute, Name: "a"}))

		var names []string
		for _, e := range r.Children("api") {
			names = append(names, e.Name)
		}
		require.Equal(t, []string{"b", "g", "a"}, names)
		require.Len(t, r.Elements(), 5)
	})
}

func TestRegistry_Update(t *testing.T) {
	t.Run("will replace a registered element", func(t *testing.T) {
		r := NewRegistry(noopLeaf)
		require.NoError(t, r.Register(&Element{Kind: KindApi, Name: "api", URL: "old"}))

		r.Update(&Element{Kind: KindApi, Name: "api", URL: "new"})

		e, ok := r.Get("api")
		require.True(t, ok)
		require.Equal(t, "new", e.URL)
	})

	t.Run("will ignore an unregistered element", func(t *testing.T) {
		r := NewRegistry(noopLeaf)

		r.Update(&Element{Kind: KindApi, Name: "api"})
		r.Update(nil)

		_, ok := r.Get("api")
		require.False(t, ok)
	})
}

func TestRegistry_Effective(t *testing.T) {
	declareTree := func(t *testing.T) (*Registry, *Element, *Element, *Element) {
		r := NewRegistry(noopLeaf)
		api := &Element{Kind: KindApi, Name: "api"}
		group := &Element{Kind: KindGroup, Name: "group"}
		route := &Element{Kind: KindRoute, Name: "route"}

		require.NoError(t, r.Register(api))
		require.NoError(t, r.Push("api"))
		require.NoError(t, r.Register(group))
		require.NoError(t, r.Push("api.group"))
		require.NoError(t, r.RegisterRoute(route))
		return r, api, group, route
	}

	t.Run("will inherit from the nearest ancestor", func(t *testing.T) {
		r, api, group, route := declareTree(t)
		api.WithCache(time.Minute).WithRetry(5)
		group.WithCache(time.Second)

		ttl, ok := r.EffectiveCache(route)
		require.True(t, ok)
		require.Equal(t, time.Second, ttl)

		n, ok := r.EffectiveRetry(route)
		require.True(t, ok)
		require.Equal(t, 5, n)
	})

	t.Run("will keep an explicit route setting", func(t *testing.T) {
		t.Run("if the group sets one later", func(t *testing.T) {
			r, _, group, route := declareTree(t)
			route.WithCache(time.Second)
			group.WithCache(30 * time.Second)

			ttl, ok := r.EffectiveCache(route)
			require.True(t, ok)
			require.Equal(t, time.Second, ttl)
		})
	})

	t.Run("will skip zero valued settings", func(t *testing.T) {
		r, api, group, route := declareTree(t)
		api.WithRetry(3)
		group.WithRetry(0)

		n, ok := r.EffectiveRetry(route)
		require.True(t, ok)
		require.Equal(t, 3, n)
	})

	t.Run("will key the rate by the element defining it", func(t *testing.T) {
		r, _, group, route := declareTree(t)
		group.WithRate(Rate{Limit: 1})

		rate, key, ok := r.EffectiveRate(route)
		require.True(t, ok)
		require.Equal(t, "api.group", key)
		require.Equal(t, Rate{Limit: 1, Duration: DefaultRate.Duration}, rate)
	})

	t.Run("will fill timeout defaults", func(t *testing.T) {
		r, api, _, route := declareTree(t)
		api.WithTimeout(Timeout{})

		to, ok := r.EffectiveTimeout(route)
		require.True(t, ok)
		require.Equal(t, DefaultTimeout, to)
	})

	t.Run("will report nothing", func(t *testing.T) {
		t.Run("if no ancestor defines a setting", func(t *testing.T) {
			r, _, _, route := declareTree(t)

			_, ok := r.EffectiveCache(route)
			require.False(t, ok)

			_, _, ok = r.EffectiveRate(route)
			require.False(t, ok)
		})
	})
}

func TestElement_Before(t *testing.T) {
	t.Run("will push down to descendants without their own", func(t *testing.T) {
		r := NewRegistry(noopLeaf)
		api := &Element{Kind: KindApi, Name: "api"}
		group := &Element{Kind: KindGroup, Name: "group"}
		own := &Element{Kind: KindRoute, Name: "own"}
		inherited := &Element{Kind: KindRoute, Name: "inherited"}

		require.NoError(t, r.Register(api))
		require.NoError(t, r.Push("api"))
		require.NoError(t, r.Register(group))
		require.NoError(t, r.Push("api.group"))
		require.NoError(t, r.RegisterRoute(own))
		require.NoError(t, r.RegisterRoute(inherited))

		ownBefore := func(ctx context.Context, in BeforeArgs) (BeforeArgs, error) {
			return BeforeArgs{URL: "own"}, nil
		}
		own.Before(ownBefore)

		api.Before(func(ctx context.Context, in BeforeArgs) (BeforeArgs, error) {
			return BeforeArgs{URL: "api"}, nil
		})

		for _, testCase := range []struct {
			Element *Element
			URL     string
		}{
			{Element: group, URL: "api"},
			{Element: own, URL: "own"},
			{Element: inherited, URL: "api"},
		} {
			before, _, _, _ := testCase.Element.callbacks()
			require.NotNil(t, before)

			out, err := before(context.Background(), BeforeArgs{})
			require.NoError(t, err)
			require.Equal(t, testCase.URL, out.URL)
		}
	})
}
