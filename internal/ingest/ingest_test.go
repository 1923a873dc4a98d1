package ingest

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
)

func touch(path string) {
	GinkgoHelper()
	Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
	Expect(os.WriteFile(path, []byte("x"), 0o644)).To(Succeed())
}

var _ = Describe("ScanDirectory", func() {
	var root string

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		touch(filepath.Join(root, "b.jpg"))
		touch(filepath.Join(root, "a.PNG"))
		touch(filepath.Join(root, "notes.txt"))
		touch(filepath.Join(root, "nested", "c.heic"))
		touch(filepath.Join(root, ".cache", "d.jpg"))
	})

	It("finds supported images in order", func() {
		paths, stats, err := ScanDirectory(context.Background(), root, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(Equal([]string{
			filepath.Join(root, "a.PNG"),
			filepath.Join(root, "b.jpg"),
			filepath.Join(root, "nested", "c.heic"),
		}))
		Expect(stats.Matched).To(Equal(3))
		Expect(stats.Skipped).To(Equal(1))
	})

	It("includes hidden directories on request", func() {
		paths, _, err := ScanDirectory(context.Background(), root, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(HaveLen(4))
	})

	It("requires a root", func() {
		_, _, err := ScanDirectory(context.Background(), " ", true)
		Expect(err).To(MatchError(common.ErrInvalidInput))
	})
})

var _ = Describe("Watch", func() {
	It("emits existing and new images", func() {
		root := GinkgoT().TempDir()
		touch(filepath.Join(root, "old.jpg"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 10 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())

		Eventually(events).Should(Receive(Equal(filepath.Join(root, "old.jpg"))))

		touch(filepath.Join(root, "skip.txt"))
		touch(filepath.Join(root, "new.png"))
		Eventually(events, time.Second).Should(Receive(Equal(filepath.Join(root, "new.png"))))

		cancel()
		Eventually(func() bool {
			_, ok := <-events
			return ok
		}, time.Second).Should(BeFalse())
	})

	It("needs at least one root", func() {
		_, _, err := Watch(context.Background(), WatchConfig{})
		Expect(err).To(HaveOccurred())
	})
})
