package s3blobstore

import (
	"regexp"
	"strings"
	"testing"

	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/gokit/assert"
)

func TestParseConfig(t *testing.T) {
	conf, err := ParseConfig("access=AKID,secret=s3cr3t,region=eu-west-3,bucket=myassets")
	assert.Ok(t, err)

	assert.EqualString(t, conf.AccessKeyID, "AKID")
	assert.EqualString(t, conf.Secret, "s3cr3t")
	assert.EqualString(t, conf.Region, "eu-west-3")
	assert.EqualString(t, conf.Bucket, "myassets")
	assert.EqualString(t, conf.Endpoint, "")
	assert.EqualString(t, conf.Folder, "")
}

func TestParseConfigOptionals(t *testing.T) {
	conf, err := ParseConfig("access=a,secret=b,region=c,bucket=d,endpoint=http://localhost:9000,folder=/prod/")
	assert.Ok(t, err)

	assert.EqualString(t, conf.Endpoint, "http://localhost:9000")
	assert.EqualString(t, conf.Folder, "prod") // surrounding slashes stripped
}

func TestParseConfigRequiredKeyMissing(t *testing.T) {
	for _, tc := range []struct {
		config     string
		missingKey string
	}{
		{"secret=b,region=c,bucket=d", "access"},
		{"access=a,region=c,bucket=d", "secret"},
		{"access=a,secret=b,bucket=d", "region"},
		{"access=a,secret=b,region=c", "bucket"},
		{"access=,secret=b,region=c,bucket=d", "access"}, // empty value counts as missing
	} {
		tc := tc // pin

		t.Run(tc.missingKey, func(t *testing.T) {
			_, err := ParseConfig(tc.config)

			assert.EqualString(t, amserrors.Code(err), "config.s3-key-missing")
			assert.Assert(t, strings.Contains(err.Error(), tc.missingKey))
		})
	}
}

func TestParseConfigMalformed(t *testing.T) {
	_, err := ParseConfig("access=a,secret=b,this-is-not-key-value")

	assert.EqualString(t, amserrors.Code(err), "config.s3-malformed")
}

func TestMakeS3Safe(t *testing.T) {
	assert.EqualString(t, makeS3Safe("plain-name_1.jpg"), "plain-name_1.jpg")
	assert.EqualString(t, makeS3Safe(`we<ird>na[me]#with{bad}|chars~`), "weirdnamewithbadchars")
	assert.EqualString(t, makeS3Safe(`100%"quoted"\'`), "100quoted")
}

func TestGenerateKey(t *testing.T) {
	keyRe := regexp.MustCompile(`^report-[A-Za-z0-9_-]+\.pdf$`)

	assert.Assert(t, keyRe.MatchString(generateKey("report.pdf", "application/pdf")))

	// two keys for the same filename must differ
	assert.Assert(t, generateKey("report.pdf", "") != generateKey("report.pdf", ""))
}

func TestGenerateKeyGuessesExtensionFromMimetype(t *testing.T) {
	key := generateKey("noextension", "image/png")

	assert.Assert(t, strings.HasPrefix(key, "noextension-"))
	assert.Assert(t, strings.HasSuffix(key, ".png"))
}

func TestFullKey(t *testing.T) {
	withFolder := &s3BlobStore{conf: &Config{Folder: "prod"}}
	withoutFolder := &s3BlobStore{conf: &Config{}}

	assert.EqualString(t, withFolder.fullKey("abc.jpg"), "prod/abc.jpg")
	assert.EqualString(t, withoutFolder.fullKey("abc.jpg"), "abc.jpg")
}
