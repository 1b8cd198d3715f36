package speechcommands

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"kws/utils"
)

const (
	ArchiveURL  = "http://download.tensorflow.org/data/speech_commands_v0.02.tar.gz"
	archiveName = "speech_commands_v0.02.tar.gz"

	backgroundDir = "_background_noise_"
	testingList   = "testing_list.txt"
)

// Corpus is an on-disk copy of the speech commands dataset.
type Corpus struct {
	Dir string
}

// Ensure downloads and extracts the corpus into dir unless it is already
// present. Any failure here is an unrecoverable startup failure for the
// training run.
func Ensure(dir string) (*Corpus, error) {
	if err := utils.MkDir(dir); err != nil {
		return nil, fmt.Errorf("error creating data directory: %v", err)
	}

	if utils.FileExists(filepath.Join(dir, testingList)) {
		return &Corpus{Dir: dir}, nil
	}

	archivePath := filepath.Join(dir, archiveName)
	if !utils.FileExists(archivePath) {
		if err := download(ArchiveURL, archivePath); err != nil {
			return nil, fmt.Errorf("error downloading corpus: %v", err)
		}
	}
	if err := extract(archivePath, dir); err != nil {
		return nil, fmt.Errorf("error extracting corpus: %v", err)
	}
	return &Corpus{Dir: dir}, nil
}

func download(url, dst string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}

	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	p := mpb.New(mpb.WithWidth(64))
	bar := p.New(resp.ContentLength,
		mpb.BarStyle(),
		mpb.PrependDecorators(
			decor.Name("Downloading: "),
			decor.CountersKibiByte("% .1f / % .1f"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	_, err = io.Copy(f, bar.ProxyReader(resp.Body))
	p.Wait()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func extract(archivePath, dir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		// the archive uses relative member names; refuse anything that
		// would escape the target directory
		name := filepath.Clean(hdr.Name)
		if strings.HasPrefix(name, "..") {
			continue
		}
		target := filepath.Join(dir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := utils.MkDir(target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := utils.MkDir(filepath.Dir(target)); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}
