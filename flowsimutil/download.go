/*
Copyright © 2018 the Flowsim authors.
This file is part of Flowsim.

Flowsim is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Flowsim is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Flowsim.  If not, see <http://www.gnu.org/licenses/>.
*/

package flowsimutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// maybeDownload checks if the input is an existing file locally.
// If not, it checks if the file is a URL.
// If it's a URL, it downloads the file and
// returns the path to the downloaded file.
// c, if not nil, is a channel across which error and
// logging messages will be sent.
func maybeDownload(path string, c chan string) string {
	// Check if local file exists. If it does, return the given path.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path
	}

	// If the path starts with one of these prefixes, download the file and
	// return the location it was downloaded to.
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return downloadHTTP(path, c)
	}

	return path
}

// downloadHTTP downloads a file from the specified URL, retrying
// transient failures with exponential backoff, and returns the path to
// the downloaded file.
func downloadHTTP(path string, c chan string) string {
	// Prepare a temporary directory for the download.
	dir, err := ioutil.TempDir("", "flowsim")
	if err != nil {
		panic(fmt.Errorf("flowsimutil: failed creating temporary download directory: %v", err))
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	local := filepath.Join(dir, filepath.Base(path))
	err = backoff.RetryNotify(
		func() error {
			w, err := os.Create(local)
			if err != nil {
				panic(fmt.Errorf("flowsimutil: failed creating file for download: %v", err))
			}
			defer w.Close()
			resp, err := http.Get(path)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("flowsimutil: downloading %s: %s", path, resp.Status)
			}
			_, err = io.Copy(w, resp.Body)
			return err
		},
		bo,
		func(err error, d time.Duration) {
			if c != nil {
				c <- fmt.Sprintf("%v: retrying in %v\n", err, d)
			}
		},
	)
	if err != nil {
		if c != nil {
			c <- err.Error()
		}
		return path
	}
	return local
}
