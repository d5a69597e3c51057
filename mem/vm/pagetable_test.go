package vm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PageTable", func() {
	var pt PageTable

	BeforeEach(func() {
		pt = NewPageTable()
	})

	It("should find inserted pages", func() {
		pt.Insert(Page{PID: 1, PageNum: 3, Frame: 0})

		page, found := pt.Find(1, 3)

		Expect(found).To(BeTrue())
		Expect(page.Frame).To(Equal(0))
	})

	It("should keep processes separate", func() {
		pt.Insert(Page{PID: 1, PageNum: 3, Frame: 0})

		_, found := pt.Find(2, 3)

		Expect(found).To(BeFalse())
	})

	It("should remove pages", func() {
		pt.Insert(Page{PID: 1, PageNum: 3, Frame: 0})
		pt.Insert(Page{PID: 1, PageNum: 4, Frame: 1})

		pt.Remove(1, 3)

		_, found := pt.Find(1, 3)
		Expect(found).To(BeFalse())
		Expect(pt.NumPages()).To(Equal(1))
	})

	It("should list pages in insertion order", func() {
		pt.Insert(Page{PID: 1, PageNum: 5, Frame: 2})
		pt.Insert(Page{PID: 1, PageNum: 1, Frame: 0})
		pt.Insert(Page{PID: 0, PageNum: 1, Frame: 1})

		Expect(pt.Pages(1)).To(Equal([]Page{
			{PID: 1, PageNum: 5, Frame: 2},
			{PID: 1, PageNum: 1, Frame: 0},
		}))
		Expect(pt.PIDs()).To(Equal([]PID{0, 1}))
		Expect(pt.NumPages()).To(Equal(3))
	})

	It("should not create tables on lookups", func() {
		pt.Insert(Page{PID: 1, PageNum: 3, Frame: 0})

		_, found := pt.Find(7, 3)
		pages := pt.Pages(8)

		Expect(found).To(BeFalse())
		Expect(pages).To(BeEmpty())
		Expect(pt.PIDs()).To(Equal([]PID{1}))
	})

	It("should panic when inserting a resident page", func() {
		pt.Insert(Page{PID: 1, PageNum: 3, Frame: 0})

		Expect(func() {
			pt.Insert(Page{PID: 1, PageNum: 3, Frame: 1})
		}).To(Panic())
	})

	It("should panic when removing a page that is not resident", func() {
		Expect(func() { pt.Remove(1, 3) }).To(Panic())
	})
})
