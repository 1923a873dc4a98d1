package common

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("errors", func() {
	It("keeps the cause reachable through AppError", func() {
		err := fmt.Errorf("process: %w", TemplateStoreError("save", errors.New("disk full")))
		Expect(IsCode(err, CodeTemplateStore)).To(BeTrue())
		Expect(errors.Is(err, ErrStorage)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("disk full"))
	})

	It("reports both backend failures when the engine is unavailable", func() {
		err := EngineUnavailableError(errors.New("primary down"), errors.New("fallback down"))
		Expect(errors.Is(err, ErrEngineUnavailable)).To(BeTrue())
		Expect(IsCode(err, CodeEngineUnavailable)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("primary down"))
		Expect(err.Error()).To(ContainSubstring("fallback down"))
	})

	It("does not match other codes or plain errors", func() {
		Expect(IsCode(NewAppError(CodeConfig, "bad", nil), CodeFieldParse)).To(BeFalse())
		Expect(IsCode(errors.New("plain"), CodeConfig)).To(BeFalse())
	})

	It("wraps with a message and passes nil through", func() {
		Expect(WrapError(nil, "close")).To(BeNil())
		err := WrapError(ErrNotFound, "load template")
		Expect(err).To(MatchError(ErrNotFound))
		Expect(err.Error()).To(Equal("load template: resource not found"))
	})
})
