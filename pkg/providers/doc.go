// Package providers opens streaming chat calls against the supported LLM
// upstreams: Gemini, Mistral and GPT.
//
// # Overview
//
// Each provider differs in three places: the request it expects, where the
// API key goes, and the JSON path holding text in each streamed event. Kind
// selects all three, so the rest of the relay deals only with a ChatPayload
// going in and raw SSE bytes coming out.
//
//	Kind      Endpoint                                   Key
//	gemini    {base}/models/{model}:streamGenerateContent  ?key= query
//	mistral   {base}/chat/completions                    Authorization: Bearer
//	gpt       {base}/chat/completions                    Authorization: Bearer
//
// # Basic Usage
//
//	client, err := providers.NewClient([]providers.Config{
//	    providers.DefaultConfig(providers.KindMistral),
//	}, providers.ClientOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	up, err := client.Open(ctx, providers.KindMistral, payload, apiKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer up.Close()
//
// The Upstream body is handed to the stream package, which uses Extract to
// pull text out of each data line.
//
// # Error Handling
//
// Every failure to open a stream is an *UpstreamError carrying the provider
// name and, when the upstream answered, its status code and a truncated
// body. Request URLs are stripped from transport errors so a Gemini key in
// the query string never reaches logs.
//
// # Health
//
// The Client counts opens per kind. Three consecutive failures mark a kind
// unhealthy until the next success; Health returns a snapshot for the
// /health/providers route. Health is informational only and never blocks a
// request.
//
// # Thread Safety
//
// A Client is safe for concurrent use. It shares one pooled http.Client
// across all kinds and never retries.
package providers
