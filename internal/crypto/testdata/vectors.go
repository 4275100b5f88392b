package testdata

// KDFVector is a PBKDF2-HMAC-SHA256 known answer (RFC 7914 style, dkLen 32).
type KDFVector struct {
	Name       string
	Password   string
	Salt       string
	Iterations int
	Key        string // Hex
}

// KDFVectors contains known PBKDF2-HMAC-SHA256 outputs.
var KDFVectors = []KDFVector{
	{
		Name:       "one iteration",
		Password:   "password",
		Salt:       "salt",
		Iterations: 1,
		Key:        "120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b",
	},
	{
		Name:       "two iterations",
		Password:   "password",
		Salt:       "salt",
		Iterations: 2,
		Key:        "ae4d0c95af6b46d32d0adff928f06dd02a303f8ef3c251dfd6e2d85a95474c43",
	},
	{
		Name:       "4096 iterations",
		Password:   "password",
		Salt:       "salt",
		Iterations: 4096,
		Key:        "c5e478d59288c841aa530db6845c4c8d962893a001ce4e11a4963873aa98134a",
	},
}

// TokenVector is a Fernet token from the reference test suite.
type TokenVector struct {
	Name    string
	Secret  string // URL-safe base64 key
	Token   string
	Message string // Empty when only validity is asserted
	Valid   bool
}

const fernetSecret = "cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4="

// TokenVectors contains valid and invalid tokens for one secret.
var TokenVectors = []TokenVector{
	{
		Name:    "hello",
		Secret:  fernetSecret,
		Token:   "gAAAAAAdwJ6wAAECAwQFBgcICQoLDA0ODy021cpGVWKZ_eEwCGM4BLLF_5CV9dOPmrhuVUPgJobwOz7JcbmrR64jVmpU4IwqDA==",
		Message: "hello",
		Valid:   true,
	},
	{
		Name:   "old timestamp accepted without ttl",
		Secret: fernetSecret,
		Token:  "gAAAAAAdwJ6xAAECAwQFBgcICQoLDA0OD3HkMATM5lFqGaerZ-fWPAl1-szkFVzXTuGb4hR8AKtwcaX1YdykRtfsH-p1YsUD2Q==",
		Valid:  true,
	},
	{
		Name:   "incorrect mac",
		Secret: fernetSecret,
		Token:  "gAAAAAAdwJ6xAAECAwQFBgcICQoLDA0OD3HkMATM5lFqGaerZ-fWPAl1-szkFVzXTuGb4hR8AKtwcaX1YdykQUFBQUFBQUFBQQ==",
	},
	{
		Name:   "too short",
		Secret: fernetSecret,
		Token:  "gAAAAAAdwJ6xAAECAwQFBgcICQoLDA0OD3HkMATM5lFqGaerZ-fWPA==",
	},
	{
		Name:   "invalid base64",
		Secret: fernetSecret,
		Token:  "%%%%%%%%%%%%%AECAwQFBgcICQoLDA0OD3HkMATM5lFqGaerZ-fWPAl1-szkFVzXTuGb4hR8AKtwcaX1YdykRtfsH-p1YsUD2Q==",
	},
	{
		Name:   "payload size not multiple of block size",
		Secret: fernetSecret,
		Token:  "gAAAAAAdwJ6xAAECAwQFBgcICQoLDA0OD3HkMATM5lFqGaerZ-fWPOm73QeoCk9uGib28Xe5vz6oxq5nmxbx_v7mrfyudzUm",
	},
	{
		Name:   "payload padding error",
		Secret: fernetSecret,
		Token:  "gAAAAAAdwJ6xAAECAwQFBgcICQoLDA0ODz4LEpdELGQAad7aNEHbf-JkLPIpuiYRLQ3RtXatOYREu2FWke6CnJNYIbkuKNqOhw==",
	},
	{
		Name:   "incorrect iv",
		Secret: fernetSecret,
		Token:  "gAAAAAAdwJ6xBQECAwQFBgcICQoLDA0OD3HkMATM5lFqGaerZ-fWPAkLhFLHpGtDBRLRTZeUfWgHSv49TF2AUEZ1TIvcZjK1zQ==",
	},
	{
		Name:   "very short payload",
		Secret: fernetSecret,
		Token:  "gAAAAABdnQ1TUKh2OE_ggbyCIxfg",
	},
	{
		Name:   "super short payload",
		Secret: fernetSecret,
		Token:  "gAAA",
	},
	{
		Name:   "empty token",
		Secret: fernetSecret,
		Token:  "",
	},
}
