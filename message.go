package websocket

// Handler turns a received text message into the reply text.
type Handler interface {
	HandleMessage(text string) (string, error)
}

type HandlerFunc func(text string) (string, error)

func (f HandlerFunc) HandleMessage(text string) (string, error) {
	return f(text)
}

// Echo replies with the received text unchanged.
var Echo Handler = HandlerFunc(func(text string) (string, error) {
	return text, nil
})
