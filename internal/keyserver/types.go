package keyserver

// KeyRecord is the JSON body of /Key/{email}.
type KeyRecord struct {
	Email string `json:"email"`
	Key   string `json:"key"`
}

// Message is the JSON body of /Message/{email}. Content is base64 ciphertext.
type Message struct {
	Email   string `json:"email"`
	Content string `json:"content"`
}
