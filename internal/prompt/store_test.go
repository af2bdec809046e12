// Copyright 2025 Prompt Architect Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prompt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "templates.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PutAndGet(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.Put("greeting", "hello {{user_language}}"))

	body, ok := store.Get("greeting")
	assert.True(t, ok)
	assert.Equal(t, "hello {{user_language}}", body)
}

func TestStore_GetMissing(t *testing.T) {
	store := testStore(t)

	_, ok := store.Get("absent")
	assert.False(t, ok)
}

func TestStore_PutReplaces(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.Put("greeting", "first"))
	require.NoError(t, store.Put("greeting", "second"))

	body, ok := store.Get("greeting")
	assert.True(t, ok)
	assert.Equal(t, "second", body)
}

func TestStore_Ping(t *testing.T) {
	store := testStore(t)
	assert.NoError(t, store.Ping(context.Background()))

	require.NoError(t, store.Close())
	assert.Error(t, store.Ping(context.Background()))
}

func TestStore_PutValidation(t *testing.T) {
	store := testStore(t)

	assert.Error(t, store.Put("", "body"))
	assert.Error(t, store.Put("name", ""))
}

func TestImitateTemplate_PrefersOverride(t *testing.T) {
	store := testStore(t)

	assert.Equal(t, DefaultImitateTemplate, ImitateTemplate(store),
		"Empty store should fall back to the built-in template")

	require.NoError(t, store.Put(ImitateTemplateName, "override body"))
	assert.Equal(t, "override body", ImitateTemplate(store))
}
