package vm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FrameTable", func() {
	var ft *FrameTable

	BeforeEach(func() {
		ft = NewFrameTable(3)
	})

	It("should start with all frames free", func() {
		Expect(ft.Capacity()).To(Equal(3))
		Expect(ft.NumFree()).To(Equal(3))
		Expect(ft.NumOwned()).To(Equal(0))
	})

	It("should allocate the lowest free frame first", func() {
		f0, _ := ft.AllocateFree(Owner{PID: 0, PageNum: 7})
		f1, _ := ft.AllocateFree(Owner{PID: 0, PageNum: 8})
		f2, _ := ft.AllocateFree(Owner{PID: 1, PageNum: 7})

		Expect([]int{f0, f1, f2}).To(Equal([]int{0, 1, 2}))
		Expect(ft.NumFree()).To(Equal(0))

		_, ok := ft.AllocateFree(Owner{PID: 1, PageNum: 9})
		Expect(ok).To(BeFalse())
	})

	It("should reuse the lowest released frame", func() {
		ft.AllocateFree(Owner{PID: 0, PageNum: 1})
		ft.AllocateFree(Owner{PID: 0, PageNum: 2})
		ft.AllocateFree(Owner{PID: 0, PageNum: 3})

		ft.Release(2)
		ft.Release(1)

		frame, ok := ft.AllocateFree(Owner{PID: 1, PageNum: 1})
		Expect(ok).To(BeTrue())
		Expect(frame).To(Equal(1))
	})

	It("should reassign owned frames", func() {
		frame, _ := ft.AllocateFree(Owner{PID: 0, PageNum: 1})

		prev := ft.Reassign(frame, Owner{PID: 2, PageNum: 5})

		Expect(prev).To(Equal(Owner{PID: 0, PageNum: 1}))
		owner, owned := ft.Owner(frame)
		Expect(owned).To(BeTrue())
		Expect(owner).To(Equal(Owner{PID: 2, PageNum: 5}))
		Expect(ft.NumOwned()).To(Equal(1))
	})

	It("should panic when reassigning a free frame", func() {
		Expect(func() { ft.Reassign(0, Owner{}) }).To(Panic())
	})

	It("should panic on out-of-range frames", func() {
		Expect(func() { ft.Owner(3) }).To(Panic())
	})

	It("should describe every frame", func() {
		ft.AllocateFree(Owner{PID: 4, PageNum: 2})

		Expect(ft.Frames()).To(Equal([]FrameState{
			{Frame: 0, Owned: true, Owner: Owner{PID: 4, PageNum: 2}},
			{Frame: 1},
			{Frame: 2},
		}))
	})
})
