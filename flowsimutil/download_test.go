package flowsimutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func helperLog(t *testing.T) chan string {
	outChan := make(chan string)
	go func() {
		for {
			msg := <-outChan
			t.Logf(msg)
		}
	}()
	return outChan
}

func TestMaybeDownloadLocal(t *testing.T) {
	if k := maybeDownload("/dev/null", helperLog(t)); k != "/dev/null" {
		t.Error("Expected /dev/null, got ", k)
	}
}

func TestMaybeDownloadLocal2(t *testing.T) {
	if k := maybeDownload("/blah/test/", helperLog(t)); k != "/blah/test/" {
		t.Error("Expected /blah/test/, got ", k)
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(http.Dir("testdata")))
	defer srv.Close()
	k := maybeDownload(srv.URL+"/flowsheet.json", helperLog(t))
	if !strings.HasSuffix(k, "flowsheet.json") || strings.HasPrefix(k, "http") {
		t.Error("Expected tempDir/flowsheet.json, got ", k)
	}
}
