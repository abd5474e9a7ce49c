package app

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("sanitizeFilename", func() {
	It("should strip special characters from the base name", func() {
		Expect(sanitizeFilename("re/ceipt*?.jpg")).To(Equal("receipt.jpg"))
	})

	It("should squeeze runs of whitespace", func() {
		Expect(sanitizeFilename("my   receipt   scan.pdf")).To(Equal("my receipt scan.pdf"))
	})

	It("should cap the base name at 50 characters", func() {
		long := ""
		for i := 0; i < 80; i++ {
			long += "a"
		}
		out := sanitizeFilename(long + ".jpg")
		Expect(out).To(HaveLen(50 + len(".jpg")))
	})

	It("should fall back to a generic name when nothing survives", func() {
		Expect(sanitizeFilename("???.png")).To(Equal("receipt.png"))
	})

	It("should keep hyphens and underscores", func() {
		Expect(sanitizeFilename("IMG_2024-10-21.heic")).To(Equal("IMG_2024-10-21.heic"))
	})
})

var _ = Describe("LocalFileStore", func() {
	var (
		dir   string
		store *LocalFileStore
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		var err error
		store, err = NewLocalFileStore(filepath.Join(dir, "uploads"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create the base directory", func() {
		info, err := os.Stat(filepath.Join(dir, "uploads"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("should round-trip a file", func() {
		path, err := store.Save("receipt.jpg", []byte("payload"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("receipt.jpg"))

		data, err := store.Get(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("payload")))
	})

	It("should delete a stored file", func() {
		path, err := store.Save("receipt.jpg", []byte("payload"))
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Delete(path)).To(Succeed())

		_, err = store.Get(path)
		Expect(err).To(HaveOccurred())
	})

	It("should error when getting a missing file", func() {
		_, err := store.Get("nope.jpg")
		Expect(err).To(HaveOccurred())
	})
})
