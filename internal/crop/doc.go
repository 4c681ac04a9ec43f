// Package crop produces the cleaned circular sample image: it hides the
// centre marker with texture drawn from a surrounding ring, inpaints
// specular highlights and cuts the result out with an alpha mask.
package crop
