// Package yandex adapts Yandex Foundation Models (YandexGPT) to the
// llm.Provider interface. The wire format differs from OpenAI's (a single
// "text" field per message, a nested completionOptions block, folder-scoped
// model URIs) so this package talks to the API directly rather than
// embedding openaicompat.Provider.
package yandex
