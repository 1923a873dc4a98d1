package template

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
)

func learnedTemplate() *Template {
	sig := ComputeSignature(sampleLines("generic"))
	return &Template{
		ID:            uuid.NewString(),
		Name:          "Corner Bakery Cafe",
		StoreName:     "Corner Bakery Cafe",
		StorePatterns: []string{storePattern("Corner Bakery Cafe")},
		ItemPattern:   itemPlain,
		Signature:     &sig,
		Version:       1,
		CreatedAt:     fixed,
		UpdatedAt:     fixed,
	}
}

// storeContract runs the behavior every Store must share.
func storeContract(open func() Store) {
	var (
		ctx   context.Context
		store Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = open()
		DeferCleanup(func() { _ = store.Close() })
	})

	It("saves, upserts, loads and deletes", func() {
		t := learnedTemplate()
		Expect(store.Save(ctx, t)).To(Succeed())

		t.Version = 2
		Expect(store.Save(ctx, t)).To(Succeed())

		loaded, err := store.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		var found *Template
		for _, l := range loaded {
			if l.ID == t.ID {
				found = l
			}
		}
		Expect(found).NotTo(BeNil())
		Expect(found.Version).To(Equal(2))
		Expect(found.Signature.Digest).To(Equal(t.Signature.Digest))
		Expect(found.CreatedAt.Equal(fixed)).To(BeTrue())

		Expect(store.Delete(ctx, t.ID)).To(Succeed())
		loaded, err = store.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, l := range loaded {
			Expect(l.ID).NotTo(Equal(t.ID))
		}
	})

	It("passes a health check", func() {
		Expect(HealthCheck(ctx, store, time.Second)).To(Succeed())
	})
}

var _ = Describe("MemoryStore", func() {
	storeContract(func() Store { return NewMemoryStore() })
})

var _ = Describe("SQLiteStore", func() {
	storeContract(func() Store {
		s, err := OpenSQLiteStore(context.Background(), ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return s
	})
})

var _ = Describe("BoltStore", func() {
	storeContract(func() Store {
		s, err := OpenBoltStore(filepath.Join(GinkgoT().TempDir(), "templates.db"))
		Expect(err).NotTo(HaveOccurred())
		return s
	})

	It("keeps learned templates across restarts", func() {
		ctx := context.Background()
		path := filepath.Join(GinkgoT().TempDir(), "templates.db")

		s, err := OpenBoltStore(path)
		Expect(err).NotTo(HaveOccurred())
		reg, err := NewRegistry(ctx, WithStore(s))
		Expect(err).NotTo(HaveOccurred())
		_, err = reg.CreateOrUpdate(ctx, "Corner Bakery Cafe", sampleLines("generic"))
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.Close()).To(Succeed())

		s, err = OpenBoltStore(path)
		Expect(err).NotTo(HaveOccurred())
		reg, err = NewRegistry(ctx, WithStore(s))
		Expect(err).NotTo(HaveOccurred())
		defer reg.Close()
		Expect(reg.Len()).To(Equal(7))

		tpl, conf := reg.FindMatchingTemplate(sampleLines("generic"), "Corner Bakery Cafe")
		Expect(tpl).NotTo(BeNil())
		Expect(conf).To(Equal(1.0))
	})

	It("needs a path", func() {
		_, err := OpenBoltStore("")
		Expect(common.IsCode(err, common.CodeConfig)).To(BeTrue())
	})
})

var _ = Describe("PostgresStore", func() {
	storeContract(func() Store {
		dsn := os.Getenv("TEMPLATE_PG_DSN")
		if dsn == "" {
			Skip("TEMPLATE_PG_DSN not set")
		}
		s, err := OpenPostgresStore(context.Background(), PostgresConfig{DSN: dsn}, nil)
		Expect(err).NotTo(HaveOccurred())
		return s
	})
})

var _ = Describe("OpenStore", func() {
	It("opens the configured kind", func() {
		s, err := OpenStore(context.Background(), common.TemplateConfig{Store: "memory"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&MemoryStore{}))

		s, err = OpenStore(context.Background(), common.TemplateConfig{Store: "sqlite"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())
	})

	It("rejects unknown kinds", func() {
		_, err := OpenStore(context.Background(), common.TemplateConfig{Store: "redis"}, nil)
		Expect(common.IsCode(err, common.CodeConfig)).To(BeTrue())
	})
})
