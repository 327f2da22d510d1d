// Package mock provides test doubles and a local stand-in for the
// chat-completion service.
//
// Model is a scriptable llms.Model for unit tests. NewSimulatedModel returns
// a Model that answers from keyword rules, which the CLI uses when no API key
// is configured.
//
// # Usage in Tests
//
//	model := mock.NewModel().
//	    WithGenerateFunc(func(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
//	        return mock.Response("سلام", 10, 5), nil
//	    })
//
//	count := model.CallCount()
package mock
