package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var heicHeader = []byte{0, 0, 0, 24, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c', 0, 0, 0, 0}

var _ = Describe("DetectContentType", func() {
	It("should use the file extension", func() {
		Expect(DetectContentType("scan.PDF", nil)).To(Equal("application/pdf"))
		Expect(DetectContentType("photo.jpeg", nil)).To(Equal("image/jpeg"))
		Expect(DetectContentType("IMG_0001.HEIC", nil)).To(Equal("image/heic"))
	})

	It("should sniff HEIC content without an extension", func() {
		Expect(DetectContentType("upload", heicHeader)).To(Equal("image/heic"))
	})

	It("should sniff other content", func() {
		Expect(DetectContentType("upload", []byte("%PDF-1.7\n"))).To(Equal("application/pdf"))
	})
})

var _ = Describe("prepareExpenseDocument", func() {
	It("should pass formats textract reads through unchanged", func() {
		data := []byte("%PDF-1.4")
		out, err := prepareExpenseDocument(data, "application/pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(data))
	})

	It("should re-encode other image types as PNG", func() {
		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		img.Set(0, 0, color.Black)
		var encoded bytes.Buffer
		Expect(png.Encode(&encoded, img)).To(Succeed())

		out, err := prepareExpenseDocument(encoded.Bytes(), "image/gif")
		Expect(err).NotTo(HaveOccurred())
		_, format, err := image.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should detect HEIC brands", func() {
		Expect(isHEICFormat(heicHeader)).To(BeTrue())
	})

	It("should reject short or other data", func() {
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
		Expect(isHEICFormat([]byte("0000ftypisom0000"))).To(BeFalse())
	})
})
