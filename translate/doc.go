// Package translate models ancient-text translation requests and results and
// implements the vendor-agnostic batch reconciliation protocol shared by all
// providers.
//
// # Core Concepts
//
//  1. Requests and Results: TranslationRequest carries a source text plus
//     optional few-shot examples, context hints, and system instructions.
//     TranslationResult carries the translation, a self-reported confidence,
//     notes, and token usage. Batch operations guarantee exactly one result
//     per request, in request order, no matter what the vendor returns.
//
//  2. Custom Identifiers: batch items are correlated by position-derived
//     identifiers (CustomID), never by vendor-native ids. This keeps
//     reconciliation independent of any provider's addressing scheme.
//
//  3. BatchBackend: each vendor exposes its asynchronous batch surface as a
//     Submit/Poll/FetchPage triple. The subpackages translate/anthropic,
//     translate/openai, translate/gemini, and translate/xai implement this
//     interface; all the polling, pagination, and reconciliation logic lives
//     once in BatchRunner.
//
//  4. Failure semantics: a vendor-reported job failure or an all-errored
//     outcome is a hard JobFailedError; exceeding the poll timeout is a
//     TimeoutError. Individual item failures inside an otherwise successful
//     job are soft: they become ConfidenceError entries in the result list
//     rather than errors.
//
//  5. Provider: composes any llm.Client (forced translate_text tool call for
//     structured output) with an optional BatchBackend, falling back to paced
//     sequential calls for vendors without a batch API.
package translate
