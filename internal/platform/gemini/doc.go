// Package gemini implements the extraction and embedding providers on
// Google's Gemini API. One client serves both capabilities; callers decide
// retry and admission policy, so the client only classifies failures.
package gemini
